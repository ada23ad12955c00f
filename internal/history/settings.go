package history

import (
	"context"
	"fmt"
)

// RetentionSettings controls journal cleanup.
type RetentionSettings struct {
	Enabled       bool `json:"enabled"`
	RetentionDays int  `json:"retentionDays"`
}

// DefaultRetentionSettings returns default retention settings.
func DefaultRetentionSettings() RetentionSettings {
	return RetentionSettings{
		Enabled:       true,
		RetentionDays: 30,
	}
}

// CleanupOldEntries deletes entries older than the retention period.
func (s *Service) CleanupOldEntries(ctx context.Context) error {
	if !s.retention.Enabled || s.retention.RetentionDays <= 0 {
		return nil
	}

	cutoff := s.now().UTC().AddDate(0, 0, -s.retention.RetentionDays).Format(timeLayout)

	res, err := s.db.ExecContext(ctx, "DELETE FROM task_events WHERE created_at < ?", cutoff)
	if err != nil {
		return fmt.Errorf("delete old history: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.logger.Info().Int64("deleted", n).Int("retentionDays", s.retention.RetentionDays).Msg("Cleaned up history")
	}
	return nil
}
