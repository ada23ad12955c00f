package watcher

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FileEvent represents a file system event.
type FileEvent struct {
	Path      string    `json:"path"`
	Op        string    `json:"op"` // "create", "write", "rename"
	Timestamp time.Time `json:"timestamp"`
}

// FileEventHandler is called with a debounced batch of events.
type FileEventHandler func(events []FileEvent)

// Config holds watcher configuration.
type Config struct {
	// DebounceDelay is how long to wait after the last event before processing.
	DebounceDelay time.Duration

	// MaxBatchSize is the maximum number of events to batch before forcing processing.
	MaxBatchSize int

	// Filter selects the file names whose events are reported. Nil accepts all.
	Filter func(name string) bool
}

// DefaultConfig returns default watcher configuration.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 500 * time.Millisecond,
		MaxBatchSize:  100,
	}
}

// Watcher reports debounced file events from a set of directories.
// Subdirectories are not watched.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    Config
	logger    zerolog.Logger
	handler   FileEventHandler

	watchedPaths map[string]bool
	pathsMu      sync.RWMutex

	pendingEvents map[string]FileEvent
	eventsMu      sync.Mutex
	debounceTimer *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new file watcher.
func New(config Config, logger zerolog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = DefaultConfig().MaxBatchSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		fsWatcher:     fsWatcher,
		config:        config,
		logger:        logger.With().Str("component", "watcher").Logger(),
		watchedPaths:  make(map[string]bool),
		pendingEvents: make(map[string]FileEvent),
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// SetHandler sets the event handler function.
func (w *Watcher) SetHandler(handler FileEventHandler) {
	w.handler = handler
}

// Start begins watching for file events.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.eventLoop()
}

// Stop stops the watcher, flushing any pending batch.
func (w *Watcher) Stop() error {
	w.cancel()
	w.wg.Wait()
	return w.fsWatcher.Close()
}

// AddPath adds a directory to watch.
func (w *Watcher) AddPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.pathsMu.Lock()
	defer w.pathsMu.Unlock()

	if w.watchedPaths[absPath] {
		return nil
	}
	if err := w.fsWatcher.Add(absPath); err != nil {
		return err
	}
	w.watchedPaths[absPath] = true

	w.logger.Info().Str("path", absPath).Msg("Added watch path")
	return nil
}

// WatchedPaths returns the currently watched directories, sorted.
func (w *Watcher) WatchedPaths() []string {
	w.pathsMu.RLock()
	defer w.pathsMu.RUnlock()

	paths := make([]string, 0, len(w.watchedPaths))
	for path := range w.watchedPaths {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			w.flushPendingEvents()
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) handleFsEvent(event fsnotify.Event) {
	if w.config.Filter != nil && !w.config.Filter(filepath.Base(event.Name)) {
		return
	}

	var op string
	switch {
	case event.Has(fsnotify.Create):
		op = "create"
	case event.Has(fsnotify.Write):
		op = "write"
	case event.Has(fsnotify.Rename):
		op = "rename"
	default:
		return
	}

	w.addPendingEvent(FileEvent{
		Path:      event.Name,
		Op:        op,
		Timestamp: time.Now(),
	})
}

// addPendingEvent adds an event to the pending batch and resets the debounce timer.
func (w *Watcher) addPendingEvent(event FileEvent) {
	w.eventsMu.Lock()
	defer w.eventsMu.Unlock()

	// Rapid events on the same file collapse into one
	w.pendingEvents[event.Path] = event

	if len(w.pendingEvents) >= w.config.MaxBatchSize {
		w.flushPendingEventsLocked()
		return
	}

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.config.DebounceDelay, w.flushPendingEvents)
}

func (w *Watcher) flushPendingEvents() {
	w.eventsMu.Lock()
	defer w.eventsMu.Unlock()
	w.flushPendingEventsLocked()
}

func (w *Watcher) flushPendingEventsLocked() {
	if len(w.pendingEvents) == 0 {
		return
	}

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}

	events := make([]FileEvent, 0, len(w.pendingEvents))
	for _, event := range w.pendingEvents {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) })

	w.pendingEvents = make(map[string]FileEvent)

	if w.handler != nil {
		go w.handler(events)
	}

	w.logger.Debug().Int("count", len(events)).Msg("Flushed file events")
}
