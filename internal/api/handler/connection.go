package handler

import (
	"net/http"

	"github.com/mcoot/pairplay/internal/api/middleware"
	"github.com/mcoot/pairplay/internal/notify"
)

// ConnectionHandler registers a player's notification endpoint
type ConnectionHandler struct {
	hub *notify.Hub
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(hub *notify.Hub) *ConnectionHandler {
	return &ConnectionHandler{hub: hub}
}

// Events handles GET /api/v1/connection/{username}/events as an SSE stream
func (h *ConnectionHandler) Events(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeSSE(w, r, middleware.MustGetUsername(r.Context()))
}

// WebSocket handles GET /api/v1/connection/{username}/ws
func (h *ConnectionHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r, middleware.MustGetUsername(r.Context()))
}
