package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"room-chat/internal/middleware"
	"room-chat/internal/observability"
)

func requestIDFromContext(c *gin.Context) string {
	if id := observability.RequestIDFromContext(c.Request.Context()); id != "" {
		return id
	}

	requestID := observability.NewRequestID(observability.RequestIDFromRequest(c.Request))
	c.Request = c.Request.WithContext(observability.WithRequestID(c.Request.Context(), requestID))
	return requestID
}

func userIDFromContext(c *gin.Context) *string {
	if identity, ok := middleware.IdentityFrom(c); ok && identity.ID != uuid.Nil {
		value := identity.ID.String()
		return &value
	}

	if header := c.GetHeader("X-User-ID"); header != "" {
		if parsed, err := uuid.Parse(header); err == nil {
			value := parsed.String()
			return &value
		}
	}

	return nil
}
