package chat

import (
	"fmt"

	"github.com/google/uuid"

	"room-chat/internal/models"
)

// CanAccess reports whether identity may read and write room: public rooms,
// the owner, invited users and elevated roles.
func CanAccess(identity models.Identity, room models.Room) bool {
	if identity.ID == uuid.Nil {
		return false
	}
	return room.IsPublic || room.IsMember(identity.ID) || models.HasElevatedAccess(identity.Role)
}

// CanDelete reports whether identity may delete room: the owner or an admin.
func CanDelete(identity models.Identity, room models.Room) bool {
	return identity.ID != uuid.Nil && (identity.ID == room.OwnerID || identity.Role == models.RoleAdmin)
}

// ParseRoomID validates a client supplied room id.
func ParseRoomID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: malformed room id %q", ErrInvalidInput, raw)
	}
	return id, nil
}
