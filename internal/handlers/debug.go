package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"room-chat/internal/telemetry"
)

// LiveStats reports in-memory room state.
type LiveStats interface {
	ActiveRooms() int
	Connections() int
}

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRouter, emitter *telemetry.AuditEmitter, stats LiveStats, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"active_rooms": stats.ActiveRooms(),
			"connections":  stats.Connections(),
		})
	})
}
