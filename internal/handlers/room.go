package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"room-chat/internal/chat"
	"room-chat/internal/middleware"
	"room-chat/internal/models"
	"room-chat/internal/repositories"
)

// RoomService is the part of the room protocol served over REST.
type RoomService interface {
	History(ctx context.Context, identity models.Identity, roomID uuid.UUID) ([]models.ResolvedMessage, error)
	DeleteRoom(ctx context.Context, identity models.Identity, roomID uuid.UUID) error
}

// RoomHandler serves room listing, history and deletion.
type RoomHandler struct {
	roomRepo repositories.RoomRepository
	service  RoomService
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(roomRepo repositories.RoomRepository, service RoomService) *RoomHandler {
	return &RoomHandler{roomRepo: roomRepo, service: service}
}

type roomResponse struct {
	models.Room
	IsOwner bool `json:"is_owner"`
}

// ListRooms returns the rooms the caller may join.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	rooms, err := h.roomRepo.ListRoomsForUser(c.Request.Context(), identity.ID, models.HasElevatedAccess(identity.Role))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}

	responses := make([]roomResponse, 0, len(rooms))
	for _, room := range rooms {
		responses = append(responses, roomResponse{Room: room, IsOwner: room.OwnerID == identity.ID})
	}
	c.JSON(http.StatusOK, gin.H{"rooms": responses})
}

// GetRoomMessages returns the room history oldest first.
func (h *RoomHandler) GetRoomMessages(c *gin.Context) {
	identity, roomID, ok := h.target(c)
	if !ok {
		return
	}

	msgs, err := h.service.History(c.Request.Context(), identity, roomID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "messages": msgs})
}

// DeleteRoom deletes a room with its messages. Owner or admin only.
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	identity, roomID, ok := h.target(c)
	if !ok {
		return
	}

	if err := h.service.DeleteRoom(c.Request.Context(), identity, roomID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) target(c *gin.Context) (models.Identity, uuid.UUID, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return models.Identity{}, uuid.Nil, false
	}
	roomID, err := chat.ParseRoomID(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return models.Identity{}, uuid.Nil, false
	}
	return identity, roomID, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	case errors.Is(err, chat.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for room"})
	case errors.Is(err, chat.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
	case errors.Is(err, chat.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
	}
}
