package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()

	hub := NewHub(zerolog.New(zerolog.NewTestWriter(t)))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws", hub.HandleWebSocket)
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	return hub, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	hub, conn := startHub(t)

	require.NoError(t, hub.Broadcast("notify:toast", map[string]string{"message": "Download queued! ID: abc"}))

	msg := readMessage(t, conn)
	assert.Equal(t, "notify:toast", msg.Type)
	assert.NotEmpty(t, msg.Timestamp)
}

func TestHub_RefreshMessageCallsHandler(t *testing.T) {
	hub, conn := startHub(t)

	var calls atomic.Int32
	hub.SetRefreshHandler(func() { calls.Add(1) })

	require.NoError(t, conn.WriteJSON(Message{Type: MsgRefresh}))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHub_ViewRequestRepliesToSender(t *testing.T) {
	hub, conn := startHub(t)
	hub.SetSnapshotProvider(func() interface{} { return map[string]int{"version": 7} })

	require.NoError(t, conn.WriteJSON(Message{Type: MsgGetView}))

	msg := readMessage(t, conn)
	assert.Equal(t, "view:state", msg.Type)
	payload, ok := msg.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 7, payload["version"], 0)
}

func TestHub_BroadcastDoesNotBlockWithoutRun(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	var lastErr error
	for i := 0; i < sendBuffer+1; i++ {
		lastErr = hub.Broadcast("logs:entry", i)
	}
	assert.ErrorIs(t, lastErr, ErrBufferFull)
}
