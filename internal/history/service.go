package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// timeLayout is fixed-width so that created_at sorts and compares as text.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Service records and queries task lifecycle events.
type Service struct {
	db        *sqlx.DB
	retention RetentionSettings
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a new history service.
func NewService(db *sqlx.DB, retention RetentionSettings, logger zerolog.Logger) *Service {
	return &Service{
		db:        db,
		retention: retention,
		logger:    logger.With().Str("component", "history").Logger(),
		now:       time.Now,
	}
}

// Create inserts a journal entry.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Entry, error) {
	entry := &Entry{
		EventType:  input.EventType,
		TaskID:     input.TaskID,
		URL:        input.URL,
		Title:      input.Title,
		FromStatus: input.FromStatus,
		ToStatus:   input.ToStatus,
		Detail:     input.Detail,
		CreatedAt:  s.now().UTC().Format(timeLayout),
	}

	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO task_events (event_type, task_id, url, title, from_status, to_status, detail, created_at)
		VALUES (:event_type, :task_id, :url, :title, :from_status, :to_status, :detail, :created_at)`, entry)
	if err != nil {
		return nil, fmt.Errorf("insert history entry: %w", err)
	}

	entry.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns entries newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResponse, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 50
	}
	if opts.PageSize > 100 {
		opts.PageSize = 100
	}

	var (
		where []string
		args  []any
	)
	if opts.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, opts.EventType)
	}
	if opts.TaskID != "" {
		where = append(where, "task_id = ?")
		args = append(args, opts.TaskID)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM task_events"+clause, args...); err != nil {
		return nil, fmt.Errorf("count history: %w", err)
	}

	items := []*Entry{}
	query := "SELECT * FROM task_events" + clause + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	pageArgs := append(append([]any{}, args...), opts.PageSize, (opts.Page-1)*opts.PageSize)
	if err := s.db.SelectContext(ctx, &items, query, pageArgs...); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	totalPages := int(total) / opts.PageSize
	if int(total)%opts.PageSize > 0 {
		totalPages++
	}

	return &ListResponse{
		Items:      items,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}

// DeleteAll clears the journal.
func (s *Service) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM task_events")
	return err
}
