// Package submitter issues user-initiated parse and download requests.
// Parses are last-submit-wins: a response for anything but the most recent
// parse is discarded with types.ErrSuperseded.
package submitter

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/accio/accio/internal/backend/types"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// Backend is the subset of the backend client the submitter needs.
type Backend interface {
	Parse(ctx context.Context, rawURL string) (*types.VideoInfo, error)
	Download(ctx context.Context, rawURL, formatID string) (string, error)
}

// PollTrigger requests an out-of-cycle poll.
type PollTrigger interface {
	Trigger()
}

// Submitter owns the current VideoInfo and the parse sequence.
type Submitter struct {
	backend  Backend
	trigger  PollTrigger
	validate *validator.Validate
	timeout  time.Duration
	logger   zerolog.Logger

	seq     atomic.Uint64
	mu      sync.Mutex
	current *types.VideoInfo
}

// New creates a new submitter. timeout bounds each backend request; zero
// leaves it to the caller's context.
func New(backend Backend, trigger PollTrigger, timeout time.Duration, logger zerolog.Logger) *Submitter {
	return &Submitter{
		backend:  backend,
		trigger:  trigger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		timeout:  timeout,
		logger:   logger.With().Str("component", "submitter").Logger(),
	}
}

// Normalize extracts the first http(s) URL from input, which may carry
// surrounding share text, and validates it.
func (s *Submitter) Normalize(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", &types.InvalidInputError{Field: "url", Reason: "must not be empty"}
	}

	candidate := urlPattern.FindString(input)
	if candidate == "" {
		return "", &types.InvalidInputError{Field: "url", Reason: "no http(s) URL found"}
	}

	if err := s.validate.Var(candidate, "required,url"); err != nil {
		return "", &types.InvalidInputError{Field: "url", Reason: "malformed URL"}
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", &types.InvalidInputError{Field: "url", Reason: "malformed URL"}
	}

	return candidate, nil
}

// Parse submits input for metadata extraction. Starting a parse discards the
// current VideoInfo; only the latest parse may replace it.
func (s *Submitter) Parse(ctx context.Context, input string) (*types.VideoInfo, error) {
	s.mu.Lock()
	seq := s.seq.Add(1)
	s.current = nil
	s.mu.Unlock()

	rawURL, err := s.Normalize(input)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	info, err := s.backend.Parse(ctx, rawURL)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq.Load() != seq {
		s.logger.Debug().
			Uint64("seq", seq).
			Str("url", rawURL).
			Msg("Dropping superseded parse result")
		return nil, types.ErrSuperseded
	}
	if err != nil {
		return nil, err
	}

	s.current = info
	return info, nil
}

// Current returns the VideoInfo of the latest successful parse, or nil.
func (s *Submitter) Current() *types.VideoInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Seq returns the sequence number of the latest parse.
func (s *Submitter) Seq() uint64 {
	return s.seq.Load()
}

// EnqueueDownload creates a backend task and triggers an immediate poll.
// An empty input falls back to the current VideoInfo's URL; an empty
// formatID means types.DefaultFormatID. Every call creates a new task.
func (s *Submitter) EnqueueDownload(ctx context.Context, input, formatID string) (string, error) {
	current := s.Current()

	if strings.TrimSpace(input) == "" && current != nil {
		input = current.OriginURL
	}
	rawURL, err := s.Normalize(input)
	if err != nil {
		return "", err
	}

	formatID = strings.TrimSpace(formatID)
	if formatID == "" {
		formatID = types.DefaultFormatID
	}
	if current != nil && current.OriginURL == rawURL && formatID != types.DefaultFormatID && !current.HasFormat(formatID) {
		return "", &types.InvalidInputError{Field: "format_id", Reason: "not offered for this video: " + formatID}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	taskID, err := s.backend.Download(ctx, rawURL, formatID)
	if err != nil {
		return "", err
	}

	if s.trigger != nil {
		s.trigger.Trigger()
	}
	return taskID, nil
}

func (s *Submitter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
