package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/accio/accio/internal/backend/types"
	"github.com/accio/accio/internal/session"
)

const (
	processedDir = "processed"
	maxFileSize  = 1 << 20
	busyRetries  = 5
	busyDelay    = 500 * time.Millisecond

	DefaultRetryInterval = time.Minute
)

// Enqueuer submits a download for a URL.
type Enqueuer interface {
	Download(ctx context.Context, input, formatID string) (string, error)
}

// ServiceConfig configures the link inbox.
type ServiceConfig struct {
	Inbox            string
	SupportedDomains []string
	Watcher          Config
	// RetryInterval is how often files kept after a failed submission are
	// rescanned.
	RetryInterval time.Duration
}

// Service turns links dropped into the inbox directory into download jobs.
// Every supported link is queued with the "best" format. Handled files are
// moved into the processed/ subdirectory.
type Service struct {
	watcher  *Watcher
	enqueuer Enqueuer
	cfg      ServiceConfig
	logger   zerolog.Logger

	mu            sync.Mutex
	lastProcessed string
	queued        int
	// retained holds, per kept file, the links already queued from it.
	retained map[string]map[string]struct{}

	// processMu serializes file handling between the startup scan and events.
	processMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a new inbox service.
func NewService(cfg ServiceConfig, enqueuer Enqueuer, logger zerolog.Logger) (*Service, error) {
	if cfg.Inbox == "" {
		return nil, errors.New("inbox directory is required")
	}
	if len(cfg.SupportedDomains) == 0 {
		cfg.SupportedDomains = DefaultSupportedDomains
	}
	if cfg.Watcher.DebounceDelay <= 0 {
		cfg.Watcher = DefaultConfig()
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	cfg.Watcher.Filter = IsInboxFile

	w, err := New(cfg.Watcher, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		watcher:  w,
		enqueuer: enqueuer,
		cfg:      cfg,
		logger:   logger.With().Str("component", "inbox").Logger(),
		retained: make(map[string]map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	w.SetHandler(s.handleEvents)
	return s, nil
}

// Start creates the inbox if needed, processes files already present and
// begins watching.
func (s *Service) Start() error {
	if err := os.MkdirAll(filepath.Join(s.cfg.Inbox, processedDir), 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	if err := s.watcher.AddPath(s.cfg.Inbox); err != nil {
		return fmt.Errorf("watch inbox: %w", err)
	}
	s.watcher.Start()

	if err := s.scan(); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.retryLoop()

	s.logger.Info().
		Str("inbox", s.cfg.Inbox).
		Strs("domains", s.cfg.SupportedDomains).
		Dur("retryInterval", s.cfg.RetryInterval).
		Msg("Inbox watcher started")
	return nil
}

// Stop stops watching. In-progress submissions are cancelled.
func (s *Service) Stop() error {
	s.cancel()
	err := s.watcher.Stop()
	s.wg.Wait()
	return err
}

// scan processes every inbox file currently on disk.
func (s *Service) scan() error {
	entries, err := os.ReadDir(s.cfg.Inbox)
	if err != nil {
		return fmt.Errorf("read inbox: %w", err)
	}
	for _, e := range entries {
		if s.ctx.Err() != nil {
			return nil
		}
		if !e.IsDir() && IsInboxFile(e.Name()) {
			s.ProcessFile(s.ctx, filepath.Join(s.cfg.Inbox, e.Name()))
		}
	}
	return nil
}

// retryLoop rescans the inbox while files are kept after failures.
func (s *Service) retryLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if s.Retained() == 0 {
				continue
			}
			if err := s.scan(); err != nil {
				s.logger.Warn().Err(err).Msg("Inbox retry scan failed")
			}
		}
	}
}

// Retained returns how many files are kept in the inbox for retry.
func (s *Service) Retained() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.retained)
}

// Queued returns how many downloads the inbox has submitted.
func (s *Service) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queued
}

func (s *Service) handleEvents(events []FileEvent) {
	for _, event := range events {
		if s.ctx.Err() != nil {
			return
		}
		s.ProcessFile(s.ctx, event.Path)
	}
}

// ProcessFile reads one dropped file and submits its supported links.
// The file is moved to processed/ unless a submission failed.
func (s *Service) ProcessFile(ctx context.Context, path string) {
	s.processMu.Lock()
	defer s.processMu.Unlock()

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	if info.Size() > maxFileSize {
		s.logger.Warn().Str("path", path).Int64("size", info.Size()).Msg("Ignoring oversized inbox file")
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("Failed to read inbox file")
		return
	}

	s.mu.Lock()
	done := s.retained[path]
	s.mu.Unlock()
	if done == nil {
		done = make(map[string]struct{})
	}

	failed := 0
	for _, link := range ExtractLinks(path, content) {
		if !IsSupported(link, s.cfg.SupportedDomains) {
			s.logger.Debug().Str("url", link).Msg("Skipping unsupported link")
			continue
		}
		if _, ok := done[link]; ok {
			continue
		}
		if err := s.submit(ctx, link); err != nil {
			failed++
			continue
		}
		done[link] = struct{}{}
	}

	if failed > 0 {
		s.mu.Lock()
		s.retained[path] = done
		s.mu.Unlock()
		s.logger.Warn().
			Str("path", path).
			Int("failed", failed).
			Dur("retryIn", s.cfg.RetryInterval).
			Msg("Keeping inbox file for retry")
		return
	}

	s.mu.Lock()
	delete(s.retained, path)
	s.mu.Unlock()

	dest := filepath.Join(s.cfg.Inbox, processedDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("Failed to move processed inbox file")
	}
}

// submit queues link unless it equals the last successfully queued link.
func (s *Service) submit(ctx context.Context, link string) error {
	s.mu.Lock()
	duplicate := link == s.lastProcessed
	s.mu.Unlock()
	if duplicate {
		s.logger.Debug().Str("url", link).Msg("Skipping link that was just queued")
		return nil
	}

	var (
		taskID string
		err    error
	)
	for attempt := 0; attempt < busyRetries; attempt++ {
		taskID, err = s.enqueuer.Download(ctx, link, types.DefaultFormatID)
		if !errors.Is(err, session.ErrBusy) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(busyDelay):
		}
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("url", link).Msg("Failed to queue link from inbox")
		return err
	}

	s.mu.Lock()
	s.lastProcessed = link
	s.queued++
	s.mu.Unlock()

	s.logger.Info().Str("url", link).Str("taskId", taskID).Msg("Queued link from inbox")
	return nil
}
