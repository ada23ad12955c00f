package notify

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accio/accio/internal/backend/types"
)

type sent struct {
	msgType string
	payload interface{}
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (f *fakeBroadcaster) Broadcast(msgType string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{msgType, payload})
	return f.err
}

func (f *fakeBroadcaster) sent() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.msgs...)
}

func newSink(t *testing.T) (*Sink, *fakeBroadcaster) {
	t.Helper()
	s := NewSink(zerolog.New(zerolog.NewTestWriter(t)))
	b := &fakeBroadcaster{}
	s.SetBroadcaster(b)
	return s, b
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"nil", nil, SeverityNone},
		{"superseded", types.ErrSuperseded, SeverityNone},
		{"wrapped superseded", fmt.Errorf("parse: %w", types.ErrSuperseded), SeverityNone},
		{"invalid input", &types.InvalidInputError{Field: "url", Reason: "empty"}, SeverityInput},
		{"rejection", &types.RemoteRejectionError{Op: "parse", StatusCode: 400, Detail: "Unsupported URL"}, SeverityAction},
		{"network", &types.NetworkError{Op: "download", Err: errors.New("connection refused")}, SeverityAction},
		{"poll failure", &types.PollFailure{StatusCode: 500}, SeverityAmbient},
		{"consistency warning", types.ConsistencyWarning{TaskID: "abc"}, SeverityAmbient},
		{"other", errors.New("boom"), SeverityAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestReport_InputBanner(t *testing.T) {
	s, b := newSink(t)

	sev := s.Report("parse", &types.InvalidInputError{Field: "url", Reason: "must not be empty"})

	assert.Equal(t, SeverityInput, sev)
	banner := s.Banner()
	require.NotNil(t, banner)
	assert.True(t, banner.Blocking)
	assert.False(t, banner.Retryable)
	assert.Equal(t, "parse", banner.Action)
	assert.Equal(t, uint64(1), s.Counters().InputErrors)

	msgs := b.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "notify:banner", msgs[0].msgType)
}

func TestReport_ActionBannerCarriesBackendDetail(t *testing.T) {
	s, _ := newSink(t)

	s.Report("download", &types.RemoteRejectionError{Op: "download", StatusCode: 400, Detail: "Unsupported URL"})

	banner := s.Banner()
	require.NotNil(t, banner)
	assert.Equal(t, "Unsupported URL", banner.Message)
	assert.True(t, banner.Retryable)
	assert.False(t, banner.Blocking)
	assert.Equal(t, uint64(1), s.Counters().ActionFailures)
}

func TestReport_AmbientIsCountedOnly(t *testing.T) {
	s, b := newSink(t)

	s.Report("poll", &types.PollFailure{StatusCode: 502})
	s.Report("poll", &types.PollFailure{Err: errors.New("timeout")})
	s.Report("reconcile", types.ConsistencyWarning{TaskID: "abc", Retained: types.TaskStatusCompleted, Reported: types.TaskStatusPending})

	assert.Nil(t, s.Banner())
	assert.Empty(t, b.sent())

	c := s.Counters()
	assert.Equal(t, uint64(2), c.PollFailures)
	assert.Equal(t, uint64(1), c.ConsistencyWarnings)
}

func TestReport_SupersededIsSilent(t *testing.T) {
	s, b := newSink(t)

	assert.Equal(t, SeverityNone, s.Report("parse", types.ErrSuperseded))
	assert.Nil(t, s.Banner())
	assert.Empty(t, b.sent())
	assert.Equal(t, Counters{}, s.Counters())
}

func TestSuccess_Toast(t *testing.T) {
	s, b := newSink(t)

	toast := s.Success("3f2a9c1e-1b2c-4d5e-8f90-123456789abc")

	assert.Equal(t, "Download queued! ID: 3f2a9c1e", toast.Message)
	assert.NotEmpty(t, toast.ID)
	assert.Equal(t, uint64(1), s.Counters().Toasts)
	require.Len(t, s.RecentToasts(), 1)

	msgs := b.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "notify:toast", msgs[0].msgType)
}

func TestClearBanner(t *testing.T) {
	s, b := newSink(t)

	s.ClearBanner()
	assert.Empty(t, b.sent(), "nothing to clear")

	s.Report("parse", &types.NetworkError{Op: "parse", Err: errors.New("refused")})
	s.ClearBanner()

	assert.Nil(t, s.Banner())
	msgs := b.sent()
	require.Len(t, msgs, 2)
	assert.Equal(t, "notify:banner", msgs[1].msgType)
	assert.Nil(t, msgs[1].payload)
}

func TestBroadcastErrorIsNotFatal(t *testing.T) {
	s := NewSink(zerolog.Nop())
	s.SetBroadcaster(&fakeBroadcaster{err: errors.New("hub closed")})

	assert.NotPanics(t, func() {
		s.Success("abc")
		s.Report("download", errors.New("boom"))
	})
	assert.NotNil(t, s.Banner())
}

func TestBannerIsCopied(t *testing.T) {
	s, _ := newSink(t)
	s.Report("parse", errors.New("boom"))

	b := s.Banner()
	b.Message = "changed"
	assert.Equal(t, "boom", s.Banner().Message)
}
