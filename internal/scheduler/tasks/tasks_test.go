package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accio/accio/internal/backend/types"
	"github.com/accio/accio/internal/scheduler"
	"github.com/accio/accio/internal/startup"
)

type fakeCookies struct {
	mu       sync.Mutex
	failures int
	calls    int
	got      types.CookieStatus
}

func (f *fakeCookies) CookieStatus(ctx context.Context) (types.CookieStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, &types.NetworkError{Op: "cookie status", Err: errors.New("connection refused")}
	}
	return types.CookieStatus{"youtube": true, "douyin": false}, nil
}

func (f *fakeCookies) SetCookies(c types.CookieStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = c
}

func (f *fakeCookies) snapshot() types.CookieStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.got
}

func TestCookieStatusTask_RetriesUnreachableBackend(t *testing.T) {
	f := &fakeCookies{failures: 2}
	retry := startup.RetryConfig{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxAttempts: 5, Multiplier: 2}
	task := NewCookieStatusTask(f, f, retry, zerolog.New(zerolog.NewTestWriter(t)))

	require.NoError(t, task.Run(context.Background()))
	assert.Equal(t, 3, f.calls)
	assert.True(t, f.snapshot()["youtube"])
}

func TestRegisterCookieStatusTask_RunsOnStart(t *testing.T) {
	sched, err := scheduler.New(zerolog.New(zerolog.NewTestWriter(t)))
	require.NoError(t, err)

	f := &fakeCookies{}
	require.NoError(t, RegisterCookieStatusTask(sched, f, f, zerolog.Nop()))
	require.NoError(t, sched.Start())
	defer sched.Stop()

	require.Eventually(t, func() bool { return f.snapshot() != nil }, 2*time.Second, 5*time.Millisecond)

	info, err := sched.GetTask(CookieStatusTaskID)
	require.NoError(t, err)
	assert.Empty(t, info.Cron)
}

type countingCleaner struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCleaner) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

func TestRegisterRateLimitCleanupTask(t *testing.T) {
	sched, err := scheduler.New(zerolog.Nop())
	require.NoError(t, err)

	c := &countingCleaner{}
	require.NoError(t, RegisterRateLimitCleanupTask(sched, c))
	assert.Error(t, RegisterRateLimitCleanupTask(sched, c), "duplicate registration")

	require.NoError(t, sched.RunNow(RateLimitCleanupTaskID))
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.calls == 1
	}, time.Second, 5*time.Millisecond)
}
