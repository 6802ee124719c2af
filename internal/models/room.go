package models

import (
	"time"

	"github.com/google/uuid"
)

// Room is the room metadata owned by the room-management side.
type Room struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	Name           string      `db:"name" json:"name"`
	Description    string      `db:"description" json:"description"`
	IsPublic       bool        `db:"is_public" json:"is_public"`
	OwnerID        uuid.UUID   `db:"owner_id" json:"owner_id"`
	InvitedUserIDs []uuid.UUID `db:"-" json:"invited_user_ids,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

// IsMember reports whether userID owns or was invited to the room.
// The owner is a member even when absent from the invite list.
func (r Room) IsMember(userID uuid.UUID) bool {
	if userID == r.OwnerID {
		return true
	}
	for _, id := range r.InvitedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
