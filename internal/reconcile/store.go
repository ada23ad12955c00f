package reconcile

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/accio/accio/internal/backend/types"
)

// CommitHandler is called after a reconciliation has been committed.
type CommitHandler func(result Result)

// Store owns the canonical task set. Readers only ever see complete
// reconciliations; Apply swaps the whole set under the write lock.
type Store struct {
	tasks    []types.Task
	version  uint64
	warnings uint64
	primed   bool
	handlers []CommitHandler
	mu       sync.RWMutex
	logger   zerolog.Logger
}

// NewStore creates an empty store.
func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		tasks:  []types.Task{},
		logger: logger.With().Str("component", "reconciler").Logger(),
	}
}

// OnCommit registers a handler for committed results.
// Handlers run outside the lock, in registration order.
func (s *Store) OnCommit(handler CommitHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// Apply reconciles polled against the current set and commits the result.
func (s *Store) Apply(polled []types.Task) Result {
	s.mu.Lock()
	result := Reconcile(s.tasks, polled)
	result.Initial = !s.primed
	s.tasks = result.Tasks
	s.primed = true
	s.version++
	s.warnings += uint64(len(result.Warnings))
	version := s.version
	handlers := append([]CommitHandler(nil), s.handlers...)
	s.mu.Unlock()

	for _, w := range result.Warnings {
		s.logger.Warn().
			Str("taskId", w.TaskID).
			Str("retained", string(w.Retained)).
			Str("reported", string(w.Reported)).
			Msg("Backend reported a terminal task as active again, keeping terminal state")
	}

	if len(result.Transitions) > 0 || len(result.Removed) > 0 {
		s.logger.Debug().
			Uint64("version", version).
			Int("tasks", len(result.Tasks)).
			Int("transitions", len(result.Transitions)).
			Int("removed", len(result.Removed)).
			Msg("Committed task view")
	}

	for _, h := range handlers {
		h(result)
	}

	return result
}

// Snapshot returns a copy of the current task set in backend order.
func (s *Store) Snapshot() []types.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Get returns the task with the given id.
func (s *Store) Get(id string) (types.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return types.Task{}, false
}

// Version increments once per committed reconciliation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// WarningCount returns the number of consistency warnings seen so far.
func (s *Store) WarningCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warnings
}
