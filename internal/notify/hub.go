// Package notify pushes events to players over a registered endpoint.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/pairplay/internal/dependencies/clock"
	"github.com/mcoot/pairplay/internal/model"
)

// Buffer size for outgoing messages
const sendBufferSize = 64

// Errors
var (
	ErrNoEndpoint   = fmt.Errorf("%w: no registered endpoint", model.ErrUserNotFound)
	ErrEndpointBusy = errors.New("endpoint buffer full")
)

// message is one encoded event queued for an endpoint
type message struct {
	eventType model.EventType
	data      []byte
}

// Endpoint is one player's delivery channel
type Endpoint struct {
	username    string
	send        chan message
	connectedAt time.Time
}

// Username returns the player this endpoint delivers to
func (e *Endpoint) Username() string {
	return e.username
}

// Hub keeps at most one endpoint per username
type Hub struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
	clock     clock.Clock
	logger    *slog.Logger
}

// NewHub creates a new Hub
func NewHub(clock clock.Clock, logger *slog.Logger) *Hub {
	return &Hub{
		endpoints: make(map[string]*Endpoint),
		clock:     clock,
		logger:    logger.With(slog.String("component", "notify")),
	}
}

// Register creates the endpoint for a user, closing any previous one
func (h *Hub) Register(username string) *Endpoint {
	ep := &Endpoint{
		username:    username,
		send:        make(chan message, sendBufferSize),
		connectedAt: h.clock.Now(),
	}

	h.mu.Lock()
	old, replaced := h.endpoints[username]
	if replaced {
		close(old.send)
	}
	h.endpoints[username] = ep
	count := len(h.endpoints)
	h.mu.Unlock()

	h.logger.Info("endpoint registered",
		slog.String("username", username),
		slog.Bool("replaced", replaced),
		slog.Int("total_endpoints", count))
	return ep
}

// Unregister removes an endpoint if it is still the user's current one
func (h *Hub) Unregister(ep *Endpoint) {
	h.mu.Lock()
	current, ok := h.endpoints[ep.username]
	if !ok || current != ep {
		h.mu.Unlock()
		return
	}
	delete(h.endpoints, ep.username)
	close(ep.send)
	count := len(h.endpoints)
	h.mu.Unlock()

	h.logger.Info("endpoint unregistered",
		slog.String("username", ep.username),
		slog.Duration("connection_duration", h.clock.Since(ep.connectedAt)),
		slog.Int("total_endpoints", count))
}

// Send delivers an event to a user's endpoint without blocking
func (h *Hub) Send(ctx context.Context, username string, eventType model.EventType, payload any) error {
	data, err := json.Marshal(model.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: h.clock.Now(),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	ep, ok := h.endpoints[username]
	if !ok {
		return ErrNoEndpoint
	}
	select {
	case ep.send <- message{eventType: eventType, data: data}:
		return nil
	default:
		h.logger.Warn("event dropped - endpoint buffer full",
			slog.String("username", username),
			slog.String("event", string(eventType)))
		return ErrEndpointBusy
	}
}

// Connected reports whether the user has a registered endpoint
func (h *Hub) Connected(username string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.endpoints[username]
	return ok
}

// EndpointCount returns the number of registered endpoints
func (h *Hub) EndpointCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.endpoints)
}

// Close disconnects every endpoint
func (h *Hub) Close() {
	h.mu.Lock()
	count := len(h.endpoints)
	for username, ep := range h.endpoints {
		close(ep.send)
		delete(h.endpoints, username)
	}
	h.mu.Unlock()
	h.logger.Info("hub stopped", slog.Int("disconnected_endpoints", count))
}
