package notify

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	wsWriteWait = 10 * time.Second

	// Time allowed to read the next pong from the peer
	wsPongWait = 60 * time.Second

	// Ping period, must be less than wsPongWait
	wsPingPeriod = (wsPongWait * 9) / 10

	// Clients only send control frames
	wsMaxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and streams a user's events as JSON text
// frames until either side closes
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, username string) {
	// Registered before the handshake completes so a connected client
	// never misses an event
	ep := h.Register(username)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response
		h.logger.Warn("websocket upgrade failed",
			slog.String("username", username),
			slog.String("error", err.Error()))
		h.Unregister(ep)
		return
	}

	done := make(chan struct{})
	go h.readPump(conn, ep, done)
	h.writePump(conn, ep, done)
}

// readPump discards client frames and notices when the peer goes away
func (h *Hub) readPump(conn *websocket.Conn, ep *Endpoint, done chan<- struct{}) {
	defer func() {
		close(done)
		h.Unregister(ep)
	}()

	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read error",
					slog.String("username", ep.username),
					slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, ep *Endpoint, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-ep.send:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				// Endpoint replaced or hub closed
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}
