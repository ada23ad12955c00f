// Package reconcile merges freshly polled task lists into the canonical view.
package reconcile

import (
	"github.com/accio/accio/internal/backend/types"
)

// Transition describes a task that appeared or changed visible status.
// From is empty for a task seen for the first time.
type Transition struct {
	TaskID   string           `json:"taskId"`
	URL      string           `json:"url"`
	Title    string           `json:"title,omitempty"`
	From     types.TaskStatus `json:"from,omitempty"`
	To       types.TaskStatus `json:"to"`
	ErrorMsg string           `json:"errorMsg,omitempty"`
}

// Result is the outcome of one reconciliation.
type Result struct {
	Tasks       []types.Task               `json:"tasks"`
	Warnings    []types.ConsistencyWarning `json:"warnings,omitempty"`
	Transitions []Transition               `json:"transitions,omitempty"`
	Removed     []string                   `json:"removed,omitempty"`
	// Changed lists ids kept at the same status whose record differs, such
	// as a title, local_url or progress update.
	Changed []string `json:"changed,omitempty"`
	// Initial is set on the first commit of a Store, when every task is new.
	Initial bool `json:"initial"`
}

// Reconcile builds the next view from the previous one and a fresh poll.
//
// The polled order is kept. A task absent from polled is dropped. When the
// previous record is terminal and the polled one is not, the previous record
// is retained and a ConsistencyWarning is reported. Duplicate ids inside one
// payload keep the first position and the last record.
func Reconcile(previous, polled []types.Task) Result {
	prevByID := make(map[string]types.Task, len(previous))
	for _, t := range previous {
		prevByID[t.ID] = t
	}

	result := Result{Tasks: make([]types.Task, 0, len(polled))}
	position := make(map[string]int, len(polled))

	for _, incoming := range polled {
		next := incoming
		prev, known := prevByID[incoming.ID]

		if known && prev.Status.IsTerminal() && !incoming.Status.IsTerminal() {
			result.Warnings = append(result.Warnings, types.ConsistencyWarning{
				TaskID:   incoming.ID,
				Retained: prev.Status,
				Reported: incoming.Status,
			})
			next = prev
		}

		if idx, dup := position[next.ID]; dup {
			result.Tasks[idx] = next
			continue
		}
		position[next.ID] = len(result.Tasks)
		result.Tasks = append(result.Tasks, next)
	}

	for _, t := range result.Tasks {
		prev, known := prevByID[t.ID]
		switch {
		case !known:
			result.Transitions = append(result.Transitions, transition(t, ""))
		case prev.Status != t.Status:
			result.Transitions = append(result.Transitions, transition(t, prev.Status))
		case !prev.Equal(t):
			result.Changed = append(result.Changed, t.ID)
		}
	}

	for _, t := range previous {
		if _, kept := position[t.ID]; !kept {
			result.Removed = append(result.Removed, t.ID)
		}
	}

	return result
}

func transition(t types.Task, from types.TaskStatus) Transition {
	return Transition{
		TaskID:   t.ID,
		URL:      t.URL,
		Title:    t.Title,
		From:     from,
		To:       t.Status,
		ErrorMsg: t.ErrorMsg,
	}
}
