package repositories

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"room-chat/internal/chat"
)

var (
	ErrRoomNotFound = fmt.Errorf("room: %w", chat.ErrNotFound)
	ErrUserNotFound = fmt.Errorf("user: %w", chat.ErrNotFound)
)

const pqForeignKeyViolation = "23503"

// isForeignKeyViolation reports whether err is a postgres FK violation, which
// on messages means the room was deleted concurrently.
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}
