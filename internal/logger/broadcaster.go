package logger

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

const defaultBufferSize = 500

// Broadcaster is the interface for broadcasting messages.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// LogEntry is a parsed log line as streamed to observers.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// LogBroadcaster is an io.Writer that buffers zerolog JSON lines and forwards
// them to a hub as "logs:entry" messages.
type LogBroadcaster struct {
	hub    Broadcaster
	buffer *RingBuffer[LogEntry]
	mu     sync.RWMutex
}

// NewLogBroadcaster creates a new log broadcaster. hub may be nil and set later.
func NewLogBroadcaster(hub Broadcaster, bufferSize int) *LogBroadcaster {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &LogBroadcaster{
		hub:    hub,
		buffer: NewRingBuffer[LogEntry](bufferSize),
	}
}

// SetHub sets the hub entries are forwarded to.
func (b *LogBroadcaster) SetHub(hub Broadcaster) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hub = hub
}

// Write implements io.Writer.
func (b *LogBroadcaster) Write(p []byte) (int, error) {
	entry, err := parseLogEntry(p)
	if err != nil {
		return len(p), nil //nolint:nilerr // malformed lines are dropped
	}

	b.buffer.Push(entry)

	b.mu.RLock()
	hub := b.hub
	b.mu.RUnlock()

	if hub != nil {
		// A failing hub must not feed back into the logger.
		_ = hub.Broadcast("logs:entry", entry)
	}
	return len(p), nil
}

// GetRecentLogs returns all buffered log entries.
func (b *LogBroadcaster) GetRecentLogs() []LogEntry {
	return b.buffer.GetAll()
}

func parseLogEntry(data []byte) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return LogEntry{}, err
	}

	entry := LogEntry{}
	take := func(key string) string {
		v, _ := raw[key].(string)
		delete(raw, key)
		return v
	}
	entry.Timestamp = take(zerolog.TimestampFieldName)
	entry.Level = take(zerolog.LevelFieldName)
	entry.Component = take("component")
	entry.Message = take(zerolog.MessageFieldName)

	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry, nil
}
