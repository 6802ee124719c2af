package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"room-chat/internal/auth"
	"room-chat/internal/chat"
	"room-chat/internal/models"
	"room-chat/internal/observability"
)

// IdentityResolver turns a session token into a verified identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (models.Identity, error)
}

// Handler upgrades authenticated requests to room websocket connections.
type Handler struct {
	hub        *Hub
	resolver   IdentityResolver
	bufferSize int
	log        *slog.Logger
}

// NewHandler constructs a Handler. bufferSize bounds each client's outbound queue.
func NewHandler(hub *Hub, resolver IdentityResolver, bufferSize int, log *slog.Logger) *Handler {
	return &Handler{hub: hub, resolver: resolver, bufferSize: bufferSize, log: log}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle resolves the caller before upgrading; rooms are joined over the socket.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("room-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	identity, err := h.resolver.Resolve(ctx, auth.TokenFromRequest(c.Request))
	if err != nil {
		if errors.Is(err, chat.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		h.log.Error("ws identity resolution failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "identity lookup failed"})
		return
	}
	span.SetAttributes(attribute.String("user_id", identity.ID.String()))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	requestID := observability.NewRequestID(observability.RequestIDFromContext(ctx))
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      identity.ID.String(),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := NewClient(conn, identity, info, h.bufferSize, h.log)

	// The request context ends with this handler; keep its values only.
	connCtx := observability.WithRequestID(context.WithoutCancel(ctx), requestID)
	if err := h.hub.Register(connCtx, client); err != nil {
		h.log.Warn("ws registration refused", "conn_id", info.ConnID, "error", err)
		_ = client.Close()
		return
	}
	go h.hub.Serve(connCtx, client)
}
