package types

import (
	"errors"
	"fmt"
)

// ErrSuperseded is returned by an operation whose result was discarded
// because a newer submission of the same kind was started.
var ErrSuperseded = errors.New("superseded by a newer submission")

// InvalidInputError is a local validation failure. It never reaches the network.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RemoteRejectionError is a non-success response to a user-initiated action.
// Detail carries the backend message verbatim.
type RemoteRejectionError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *RemoteRejectionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s rejected with status %d", e.Op, e.StatusCode)
	}
	return e.Detail
}

// NetworkError is a transport-level failure of a user-initiated action.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// PollFailure is a failed background refresh. It is ambient: counted, never shown.
type PollFailure struct {
	StatusCode int // zero for transport failures
	Err        error
}

func (e *PollFailure) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("task poll failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("task poll failed: %v", e.Err)
}

func (e *PollFailure) Unwrap() error {
	return e.Err
}

// ConsistencyWarning records a backend report that would move a task from a
// terminal status back to a non-terminal one. The terminal record is kept.
type ConsistencyWarning struct {
	TaskID   string     `json:"taskId"`
	Retained TaskStatus `json:"retained"`
	Reported TaskStatus `json:"reported"`
}

func (w ConsistencyWarning) Error() string {
	return fmt.Sprintf("task %s regressed from %s to %s; keeping %s", w.TaskID, w.Retained, w.Reported, w.Retained)
}
