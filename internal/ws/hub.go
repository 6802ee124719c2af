package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"room-chat/internal/observability"
)

const wsRoutingKey = "ws_events.rooms"

var errHubClosed = errors.New("hub closed")

// Hub owns the lifecycle of websocket clients: registration with the room
// service, teardown on disconnect and shutdown.
type Hub struct {
	service RoomService
	log     *slog.Logger

	mu      sync.Mutex
	clients map[string]*Client
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(service RoomService, log *slog.Logger) *Hub {
	return &Hub{
		service: service,
		log:     log,
		clients: make(map[string]*Client),
	}
}

// Register connects the client to the room service.
func (h *Hub) Register(ctx context.Context, c *Client) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return errHubClosed
	}
	h.clients[c.ID()] = c
	h.mu.Unlock()

	if err := h.service.Connect(c); err != nil {
		h.mu.Lock()
		delete(h.clients, c.ID())
		h.mu.Unlock()
		return err
	}

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publish(ctx, "ws_connect", c.Info(), "")
	h.log.Info("ws connected", "conn_id", c.ID(), "user_id", c.Info().UserID, "ip", c.Info().IP)
	return nil
}

// Unregister removes the client from every room. Only the first call per client has an effect.
func (h *Hub) Unregister(ctx context.Context, c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c.ID()]
	delete(h.clients, c.ID())
	h.mu.Unlock()
	if !ok {
		return
	}

	h.service.Disconnect(c.ID())
	_ = c.Close()

	observability.DecWSActive()
	observability.IncWSEvent("ws_disconnect")
	h.publish(ctx, "ws_disconnect", c.Info(), reason)
	h.log.Info("ws disconnected", "conn_id", c.ID(), "reason", reason,
		"duration_ms", time.Since(c.Info().ConnectedAt).Milliseconds())
}

// Serve runs the client's pumps and unregisters it when the read side ends.
func (h *Hub) Serve(ctx context.Context, c *Client) {
	go c.WritePump()
	err := c.ReadPump(ctx, h.service)
	select {
	case <-c.Done():
	default:
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			observability.IncWSEvent("ws_error")
			h.publish(ctx, "ws_error", c.Info(), err.Error())
		}
	}
	h.Unregister(ctx, c, err.Error())
}

// CloseAll disconnects every client and refuses new ones.
func (h *Hub) CloseAll(ctx context.Context) {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.Unregister(ctx, c, "server shutdown")
	}
}

// Count is the number of registered clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) publish(ctx context.Context, name string, info ConnInfo, reason string) {
	_ = observability.PublishEvent(ctx, wsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload:   wsEventPayload(name, info, reason),
	})
}

func wsEventPayload(name string, info ConnInfo, reason string) observability.WSEventPayload {
	return observability.WSEventPayload{
		Event:      name,
		ConnID:     info.ConnID,
		UserID:     info.UserID,
		IP:         info.IP,
		Reason:     reason,
		DurationMS: time.Since(info.ConnectedAt).Milliseconds(),
	}
}
