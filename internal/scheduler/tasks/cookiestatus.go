package tasks

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/accio/accio/internal/backend/types"
	"github.com/accio/accio/internal/scheduler"
	"github.com/accio/accio/internal/startup"
)

const CookieStatusTaskID = "cookie-status"

// CookieFetcher reads the backend's cookie availability.
type CookieFetcher interface {
	CookieStatus(ctx context.Context) (types.CookieStatus, error)
}

// CookieSink receives the fetched snapshot.
type CookieSink interface {
	SetCookies(cookies types.CookieStatus)
}

// CookieStatusTask fetches cookie status once, retrying while the backend
// is unreachable.
type CookieStatusTask struct {
	fetcher CookieFetcher
	sink    CookieSink
	retry   startup.RetryConfig
	logger  zerolog.Logger
}

func NewCookieStatusTask(fetcher CookieFetcher, sink CookieSink, retry startup.RetryConfig, logger zerolog.Logger) *CookieStatusTask {
	return &CookieStatusTask{
		fetcher: fetcher,
		sink:    sink,
		retry:   retry,
		logger:  logger.With().Str("task", CookieStatusTaskID).Logger(),
	}
}

func (t *CookieStatusTask) Run(ctx context.Context) error {
	var status types.CookieStatus
	err := startup.WithRetry(ctx, "cookie status", t.retry, func(ctx context.Context) error {
		var err error
		status, err = t.fetcher.CookieStatus(ctx)
		return err
	}, t.logger)
	if err != nil {
		return err
	}

	t.sink.SetCookies(status)
	t.logger.Info().Strs("providers", status.Providers()).Msg("Loaded cookie status")
	return nil
}

// RegisterCookieStatusTask registers a one-shot fetch that runs when the scheduler starts.
func RegisterCookieStatusTask(sched *scheduler.Scheduler, fetcher CookieFetcher, sink CookieSink, logger zerolog.Logger) error {
	task := NewCookieStatusTask(fetcher, sink, startup.DefaultRetryConfig(), logger)

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          CookieStatusTaskID,
		Name:        "Cookie Status",
		Description: "Fetches which providers have authentication cookies configured",
		Func:        task.Run,
	})
}
