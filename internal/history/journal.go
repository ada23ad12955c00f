package history

import (
	"context"
	"time"

	"github.com/accio/accio/internal/backend/types"
	"github.com/accio/accio/internal/reconcile"
)

const journalTimeout = 5 * time.Second

// RecordCommit journals the transitions and warnings of a committed
// reconciliation. The first commit only establishes the baseline and is
// not journaled. It is meant to be registered with reconcile.Store.OnCommit.
func (s *Service) RecordCommit(result reconcile.Result) {
	if result.Initial {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	for _, tr := range result.Transitions {
		input := CreateInput{
			EventType:  eventFor(tr),
			TaskID:     tr.TaskID,
			URL:        tr.URL,
			Title:      tr.Title,
			FromStatus: string(tr.From),
			ToStatus:   string(tr.To),
		}
		if tr.To == types.TaskStatusFailed {
			input.Detail = tr.ErrorMsg
		}
		if _, err := s.Create(ctx, input); err != nil {
			s.logger.Warn().Err(err).Str("taskId", tr.TaskID).Msg("Failed to journal transition")
		}
	}

	for _, w := range result.Warnings {
		_, err := s.Create(ctx, CreateInput{
			EventType:  EventTypeConsistencyWarning,
			TaskID:     w.TaskID,
			FromStatus: string(w.Retained),
			ToStatus:   string(w.Reported),
			Detail:     w.Error(),
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("taskId", w.TaskID).Msg("Failed to journal consistency warning")
		}
	}
}

func eventFor(tr reconcile.Transition) EventType {
	switch {
	case tr.To == types.TaskStatusCompleted:
		return EventTypeCompleted
	case tr.To == types.TaskStatusFailed:
		return EventTypeFailed
	case tr.From == "":
		return EventTypeQueued
	default:
		return EventTypeStatusChanged
	}
}
