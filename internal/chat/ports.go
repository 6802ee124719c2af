package chat

import (
	"context"
	"time"

	"github.com/google/uuid"

	"room-chat/internal/models"
)

// MessageStore is the durable append-only log of room messages.
// Append must be visible to every Range call that starts after it returns.
type MessageStore interface {
	Append(ctx context.Context, roomID, authorID uuid.UUID, body string, at time.Time) (models.Message, error)
	// Range returns the room's messages oldest first.
	Range(ctx context.Context, roomID uuid.UUID) ([]models.Message, error)
	DeleteAll(ctx context.Context, roomID uuid.UUID) error
}

// RoomDirectory is the authoritative source of room metadata.
// Lookups of unknown rooms return an error wrapping ErrNotFound.
type RoomDirectory interface {
	GetRoom(ctx context.Context, roomID uuid.UUID) (models.Room, error)
	DeleteRoom(ctx context.Context, roomID uuid.UUID) error
}

// UserDirectory resolves current user state for author projections.
// Unknown ids are left out of the result.
type UserDirectory interface {
	GetUsers(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}

// Conn is a live client connection as seen by the registry.
//
// Deliver is called while a room's membership lock is held and must not
// block; a connection that cannot take the event returns an error and is
// dropped.
type Conn interface {
	ID() string
	Identity() models.Identity
	Deliver(evt models.RoomEvent) error
	Close() error
}
