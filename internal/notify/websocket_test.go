package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/pairplay/internal/dependencies/clock"
	"github.com/mcoot/pairplay/internal/model"
	"github.com/mcoot/pairplay/internal/testutil"
)

func dialHub(t *testing.T, hub *Hub, username string) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, username)
	}))
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, func() {
		_ = conn.Close()
		server.Close()
	}
}

func TestServeWSDeliversEvents(t *testing.T) {
	hub := NewHub(clock.New(), testutil.NopLogger())
	conn, cleanup := dialHub(t, hub, "bob")
	defer cleanup()

	require.Eventually(t, func() bool { return hub.Connected("bob") }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Send(context.Background(), "bob", model.EventMoveProposed, model.MoveProposedPayload{Proposer: "alice"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)

	var event struct {
		Type    model.EventType           `json:"type"`
		Payload model.MoveProposedPayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, model.EventMoveProposed, event.Type)
	assert.Equal(t, "alice", event.Payload.Proposer)
}

func TestServeWSUnregistersOnClientClose(t *testing.T) {
	hub := NewHub(clock.New(), testutil.NopLogger())
	conn, cleanup := dialHub(t, hub, "bob")
	defer cleanup()
	require.Eventually(t, func() bool { return hub.Connected("bob") }, time.Second, 10*time.Millisecond)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	assert.Eventually(t, func() bool { return !hub.Connected("bob") }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWSClosedWhenReplaced(t *testing.T) {
	hub := NewHub(clock.New(), testutil.NopLogger())
	conn, cleanup := dialHub(t, hub, "bob")
	defer cleanup()
	require.Eventually(t, func() bool { return hub.Connected("bob") }, time.Second, 10*time.Millisecond)

	hub.Register("bob")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}
