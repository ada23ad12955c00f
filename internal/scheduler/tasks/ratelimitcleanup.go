package tasks

import (
	"context"

	"github.com/accio/accio/internal/scheduler"
)

const RateLimitCleanupTaskID = "ratelimit-cleanup"

// Cleaner drops expired state.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}

// RegisterRateLimitCleanupTask prunes expired submit rate-limit buckets every ten minutes.
func RegisterRateLimitCleanupTask(sched *scheduler.Scheduler, cleaner Cleaner) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          RateLimitCleanupTaskID,
		Name:        "Rate Limit Cleanup",
		Description: "Drops expired per-client submit counters",
		Cron:        "*/10 * * * *",
		Func:        cleaner.Cleanup,
	})
}
