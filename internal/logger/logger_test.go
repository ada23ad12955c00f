package logger

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer_EvictsOldest(t *testing.T) {
	rb := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		rb.Push(i)
	}

	assert.Equal(t, []int{3, 4, 5}, rb.GetAll())
	assert.Equal(t, []int{4, 5}, rb.Last(2))
	assert.Equal(t, []int{3, 4, 5}, rb.Last(10))
	assert.Equal(t, 3, rb.Len())
}

func TestRingBuffer_Empty(t *testing.T) {
	rb := NewRingBuffer[string](0)
	assert.Empty(t, rb.GetAll())
	rb.Push("a")
	rb.Push("b")
	assert.Equal(t, []string{"b"}, rb.GetAll())
}

type recordingHub struct {
	mu      sync.Mutex
	entries []LogEntry
	err     error
}

func (h *recordingHub) Broadcast(msgType string, payload interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if entry, ok := payload.(LogEntry); ok && msgType == "logs:entry" {
		h.entries = append(h.entries, entry)
	}
	return h.err
}

func TestLogBroadcaster_ParsesAndForwards(t *testing.T) {
	hub := &recordingHub{}
	b := NewLogBroadcaster(hub, 10)
	log := zerolog.New(b).With().Timestamp().Logger()

	log.Warn().Str("component", "poller").Str("taskId", "abc").Msg("Poll failed")

	recent := b.GetRecentLogs()
	require.Len(t, recent, 1)
	assert.Equal(t, "warn", recent[0].Level)
	assert.Equal(t, "poller", recent[0].Component)
	assert.Equal(t, "Poll failed", recent[0].Message)
	assert.Equal(t, "abc", recent[0].Fields["taskId"])
	assert.NotEmpty(t, recent[0].Timestamp)

	require.Len(t, hub.entries, 1)
}

func TestLogBroadcaster_IgnoresMalformedAndHubErrors(t *testing.T) {
	b := NewLogBroadcaster(&recordingHub{err: errors.New("closed")}, 10)

	n, err := b.Write([]byte("not json"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Empty(t, b.GetRecentLogs())

	_, err = b.Write([]byte(`{"level":"info","message":"hello"}`))
	require.NoError(t, err)
	assert.Len(t, b.GetRecentLogs(), 1)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
}

func TestNew_StreamingAndFile(t *testing.T) {
	dir := t.TempDir()
	l := New(Config{Level: "info", Format: "json", Path: dir, EnableStreaming: true, BufferSize: 5})
	defer l.Close()

	cl := l.WithComponent("test")
	cl.Info().Msg("started")

	assert.Contains(t, l.GetLogFilePath(), "accio.log")
	logs := l.GetRecentLogs()
	require.NotEmpty(t, logs)
	assert.Equal(t, "test", logs[len(logs)-1].Component)
}

func TestNew_NoStreaming(t *testing.T) {
	l := New(Config{Level: "info", Format: "json"})
	assert.Empty(t, l.GetRecentLogs())
	assert.Empty(t, l.GetLogFilePath())
	l.SetBroadcastHub(&recordingHub{})
}
