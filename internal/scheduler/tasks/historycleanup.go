package tasks

import (
	"github.com/accio/accio/internal/history"
	"github.com/accio/accio/internal/scheduler"
)

const HistoryCleanupTaskID = "history-cleanup"

// RegisterHistoryCleanupTask registers the journal cleanup task.
// It runs daily at 2 AM and deletes entries older than the retention period.
func RegisterHistoryCleanupTask(sched *scheduler.Scheduler, historyService *history.Service) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          HistoryCleanupTaskID,
		Name:        "History Cleanup",
		Description: "Deletes journal entries older than the configured retention period",
		Cron:        "0 2 * * *",
		Func:        historyService.CleanupOldEntries,
	})
}
