// Package session assembles the consumer-facing state from the submitter,
// reconciler, poller and notification sink, and coordinates user actions.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/accio/accio/internal/backend/types"
	"github.com/accio/accio/internal/notify"
	"github.com/accio/accio/internal/poller"
	"github.com/accio/accio/internal/reconcile"
	"github.com/accio/accio/internal/status"
)

// ErrBusy is returned when a download is submitted while another is outstanding.
var ErrBusy = errors.New("a download submission is already in progress")

// Broadcaster defines the interface for broadcasting messages.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Submitter issues user-initiated backend requests.
type Submitter interface {
	Parse(ctx context.Context, input string) (*types.VideoInfo, error)
	EnqueueDownload(ctx context.Context, input, formatID string) (string, error)
	Current() *types.VideoInfo
}

// PollController is the part of the poller a session drives.
type PollController interface {
	Trigger()
	Stats() poller.Stats
}

// Deps are the collaborators of a Session.
type Deps struct {
	Submitter  Submitter
	Store      *reconcile.Store
	Poller     PollController
	Sink       *notify.Sink
	StaticRoot string
}

// FormatView is a parsed format with its display size.
type FormatView struct {
	types.Format
	SizeLabel string `json:"sizeLabel"`
}

// VideoView is the current parse result as rendered.
type VideoView struct {
	Title     string       `json:"title"`
	Thumbnail string       `json:"thumbnail,omitempty"`
	OriginURL string       `json:"originalUrl"`
	Formats   []FormatView `json:"formats"`
}

// TaskView is one task with its derived display state.
type TaskView struct {
	types.Task
	DisplayTitle string            `json:"displayTitle"`
	ShortID      string            `json:"shortId"`
	Display      status.Projection `json:"display"`
}

// View is the complete consumer state. Every field is a copy.
type View struct {
	Video      *VideoView         `json:"video"`
	Tasks      []TaskView         `json:"tasks"`
	Cookies    types.CookieStatus `json:"cookies"`
	Banner     *notify.Banner     `json:"banner"`
	Parsing    bool               `json:"parsing"`
	Submitting bool               `json:"submitting"`
	Poll       poller.Stats       `json:"poll"`
	Counters   notify.Counters    `json:"counters"`
	Version    uint64             `json:"version"`
}

// Session coordinates user actions and publishes the resulting View.
type Session struct {
	deps        Deps
	broadcaster Broadcaster
	logger      zerolog.Logger

	mu         sync.Mutex
	cookies    types.CookieStatus
	parsing    int
	submitting bool
}

// New creates a session and subscribes it to store commits.
func New(deps Deps, logger zerolog.Logger) *Session {
	s := &Session{
		deps:    deps,
		cookies: types.CookieStatus{},
		logger:  logger.With().Str("component", "session").Logger(),
	}
	deps.Store.OnCommit(s.handleCommit)
	return s
}

// SetBroadcaster sets where view updates are pushed.
func (s *Session) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = b
}

// Parse submits input for metadata extraction. A superseded parse returns
// types.ErrSuperseded and leaves the banner alone.
func (s *Session) Parse(ctx context.Context, input string) (*types.VideoInfo, error) {
	s.deps.Sink.ClearBanner()
	s.mu.Lock()
	s.parsing++
	s.mu.Unlock()
	s.publish()

	info, err := s.deps.Submitter.Parse(ctx, input)

	s.mu.Lock()
	s.parsing--
	s.mu.Unlock()

	if err != nil {
		s.deps.Sink.Report("parse", err)
	}
	s.publish()
	return info, err
}

// Download enqueues a download. Only one submission may be outstanding.
func (s *Session) Download(ctx context.Context, input, formatID string) (string, error) {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return "", ErrBusy
	}
	s.submitting = true
	s.mu.Unlock()

	s.deps.Sink.ClearBanner()
	s.publish()

	taskID, err := s.deps.Submitter.EnqueueDownload(ctx, input, formatID)

	s.mu.Lock()
	s.submitting = false
	s.mu.Unlock()

	if err != nil {
		s.deps.Sink.Report("download", err)
	} else {
		s.deps.Sink.Success(taskID)
	}
	s.publish()
	return taskID, err
}

// Refresh requests an immediate poll.
func (s *Session) Refresh() {
	s.deps.Poller.Trigger()
}

// SetCookies replaces the cookie availability snapshot.
func (s *Session) SetCookies(cookies types.CookieStatus) {
	cp := make(types.CookieStatus, len(cookies))
	for k, v := range cookies {
		cp[k] = v
	}

	s.mu.Lock()
	s.cookies = cp
	s.mu.Unlock()
	s.publish()
}

// View returns the current consumer state.
func (s *Session) View() View {
	s.mu.Lock()
	cookies := make(types.CookieStatus, len(s.cookies))
	for k, v := range s.cookies {
		cookies[k] = v
	}
	parsing := s.parsing > 0
	submitting := s.submitting
	s.mu.Unlock()

	tasks := s.deps.Store.Snapshot()
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, TaskView{
			Task:         t,
			DisplayTitle: status.DisplayTitle(t),
			ShortID:      status.ShortID(t.ID),
			Display:      status.Project(t, s.deps.StaticRoot),
		})
	}

	v := View{
		Video:      videoView(s.deps.Submitter.Current()),
		Tasks:      views,
		Cookies:    cookies,
		Banner:     s.deps.Sink.Banner(),
		Parsing:    parsing,
		Submitting: submitting,
		Counters:   s.deps.Sink.Counters(),
		Version:    s.deps.Store.Version(),
	}
	if s.deps.Poller != nil {
		v.Poll = s.deps.Poller.Stats()
	}
	return v
}

func videoView(info *types.VideoInfo) *VideoView {
	if info == nil {
		return nil
	}
	formats := make([]FormatView, 0, len(info.Formats))
	for _, f := range info.Formats {
		formats = append(formats, FormatView{Format: f, SizeLabel: status.FormatBytes(f.Filesize)})
	}
	return &VideoView{
		Title:     info.Title,
		Thumbnail: info.Thumbnail,
		OriginURL: info.OriginURL,
		Formats:   formats,
	}
}

func (s *Session) handleCommit(result reconcile.Result) {
	for _, w := range result.Warnings {
		s.deps.Sink.Report("reconcile", w)
	}
	if result.Initial || len(result.Transitions) > 0 || len(result.Removed) > 0 || len(result.Changed) > 0 {
		s.publish()
	}
}

func (s *Session) publish() {
	s.mu.Lock()
	b := s.broadcaster
	s.mu.Unlock()
	if b == nil {
		return
	}
	if err := b.Broadcast("view:state", s.View()); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to broadcast view")
	}
}
