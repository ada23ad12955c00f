package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accio/accio/internal/backend/types"
)

func fastRetry() RetryConfig {
	return RetryConfig{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, MaxAttempts: 3, Multiplier: 2}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"refused", &types.NetworkError{Op: "cookie status", Err: errors.New("dial tcp 127.0.0.1:8000: connect: connection refused")}, true},
		{"bad gateway", &types.RemoteRejectionError{StatusCode: 502}, true},
		{"bad request", &types.RemoteRejectionError{StatusCode: 400, Detail: "timeout in detail"}, false},
		{"decode", errors.New("decode cookie status: unexpected EOF"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestWithRetry_RetriesUntilSuccess(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), "backend", fastRetry(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, zerolog.New(zerolog.NewTestWriter(t)))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	attempts := 0
	permanent := &types.RemoteRejectionError{StatusCode: 404}
	err := WithRetry(context.Background(), "backend", fastRetry(), func(ctx context.Context) error {
		attempts++
		return permanent
	}, zerolog.Nop())

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestWithRetry_GivesUp(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), "backend", fastRetry(), func(ctx context.Context) error {
		attempts++
		return errors.New("i/o timeout")
	}, zerolog.Nop())

	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetry()
	cfg.InitialDelay = time.Hour

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := WithRetry(ctx, "backend", cfg, func(ctx context.Context) error {
		return errors.New("connection refused")
	}, zerolog.Nop())
	assert.ErrorIs(t, err, context.Canceled)
}
