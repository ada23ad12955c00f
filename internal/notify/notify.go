// Package notify surfaces failures and acknowledgements to consumers with
// distinct severities: blocking input errors, retryable action failures, and
// ambient background failures that are only counted.
package notify

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/accio/accio/internal/backend/types"
	"github.com/accio/accio/internal/logger"
	"github.com/accio/accio/internal/status"
)

const recentToasts = 50

// Severity classifies a reported condition.
type Severity string

const (
	SeverityNone    Severity = ""
	SeverityInput   Severity = "input"
	SeverityAction  Severity = "action"
	SeverityAmbient Severity = "ambient"
)

// Broadcaster defines the interface for broadcasting messages.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Banner is the inline error shown next to the control that triggered it.
type Banner struct {
	Severity  Severity  `json:"severity"`
	Action    string    `json:"action"`
	Message   string    `json:"message"`
	Blocking  bool      `json:"blocking"`
	Retryable bool      `json:"retryable"`
	RaisedAt  time.Time `json:"raisedAt"`
}

// Toast is a transient, non-blocking acknowledgement.
type Toast struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	TaskID    string    `json:"taskId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Counters are running totals per condition.
type Counters struct {
	InputErrors         uint64 `json:"inputErrors"`
	ActionFailures      uint64 `json:"actionFailures"`
	PollFailures        uint64 `json:"pollFailures"`
	ConsistencyWarnings uint64 `json:"consistencyWarnings"`
	Toasts              uint64 `json:"toasts"`
}

// Sink collects notifications and holds the current banner.
type Sink struct {
	banner      *Banner
	counters    Counters
	toasts      *logger.RingBuffer[Toast]
	broadcaster Broadcaster
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewSink creates a new notification sink.
func NewSink(log zerolog.Logger) *Sink {
	return &Sink{
		toasts: logger.NewRingBuffer[Toast](recentToasts),
		logger: log.With().Str("component", "notify").Logger(),
	}
}

// SetBroadcaster sets the broadcaster for banners and toasts.
func (s *Sink) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = b
}

// Classify maps an error onto a severity.
func Classify(err error) Severity {
	if err == nil || errors.Is(err, types.ErrSuperseded) {
		return SeverityNone
	}

	var (
		invalid *types.InvalidInputError
		poll    *types.PollFailure
		warning types.ConsistencyWarning
	)
	switch {
	case errors.As(err, &invalid):
		return SeverityInput
	case errors.As(err, &poll), errors.As(err, &warning):
		return SeverityAmbient
	default:
		return SeverityAction
	}
}

// Report records err raised by action and returns its severity.
// Input and action failures replace the banner; ambient ones are only counted.
func (s *Sink) Report(action string, err error) Severity {
	severity := Classify(err)

	switch severity {
	case SeverityNone:
		return severity

	case SeverityAmbient:
		s.mu.Lock()
		var warning types.ConsistencyWarning
		if errors.As(err, &warning) {
			s.counters.ConsistencyWarnings++
		} else {
			s.counters.PollFailures++
		}
		s.mu.Unlock()
		s.logger.Debug().Err(err).Str("action", action).Msg("Ambient failure")
		return severity
	}

	banner := &Banner{
		Severity:  severity,
		Action:    action,
		Message:   err.Error(),
		Blocking:  severity == SeverityInput,
		Retryable: severity == SeverityAction,
		RaisedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	s.banner = banner
	if severity == SeverityInput {
		s.counters.InputErrors++
	} else {
		s.counters.ActionFailures++
	}
	b := s.broadcaster
	s.mu.Unlock()

	s.logger.Info().
		Str("action", action).
		Str("severity", string(severity)).
		Str("message", banner.Message).
		Msg("Action failed")

	s.broadcast(b, "notify:banner", banner)
	return severity
}

// Success acknowledges a queued task with a transient toast.
func (s *Sink) Success(taskID string) Toast {
	toast := Toast{
		ID:        uuid.NewString(),
		Message:   "Download queued! ID: " + status.ShortID(taskID),
		TaskID:    taskID,
		CreatedAt: time.Now().UTC(),
	}
	s.toasts.Push(toast)

	s.mu.Lock()
	s.counters.Toasts++
	b := s.broadcaster
	s.mu.Unlock()

	s.broadcast(b, "notify:toast", toast)
	return toast
}

// ClearBanner removes the current banner. Called when a new action starts.
func (s *Sink) ClearBanner() {
	s.mu.Lock()
	cleared := s.banner != nil
	s.banner = nil
	b := s.broadcaster
	s.mu.Unlock()

	if cleared {
		s.broadcast(b, "notify:banner", nil)
	}
}

// Banner returns a copy of the current banner, or nil.
func (s *Sink) Banner() *Banner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.banner == nil {
		return nil
	}
	b := *s.banner
	return &b
}

// Counters returns the running totals.
func (s *Sink) Counters() Counters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters
}

// RecentToasts returns buffered toasts from oldest to newest.
func (s *Sink) RecentToasts() []Toast {
	return s.toasts.GetAll()
}

func (s *Sink) broadcast(b Broadcaster, msgType string, payload interface{}) {
	if b == nil {
		return
	}
	if err := b.Broadcast(msgType, payload); err != nil {
		s.logger.Warn().Err(err).Str("type", msgType).Msg("Failed to broadcast notification")
	}
}
