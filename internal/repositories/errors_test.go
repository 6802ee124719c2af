package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"room-chat/internal/chat"
)

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, isForeignKeyViolation(&pq.Error{Code: "23503"}))
	assert.True(t, isForeignKeyViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23503"})))
	assert.False(t, isForeignKeyViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isForeignKeyViolation(errors.New("boom")))
	assert.False(t, isForeignKeyViolation(nil))
}

func TestNotFoundErrorsWrapChatSentinel(t *testing.T) {
	assert.ErrorIs(t, ErrRoomNotFound, chat.ErrNotFound)
	assert.ErrorIs(t, ErrUserNotFound, chat.ErrNotFound)
	assert.Equal(t, "not_found", chat.ErrorCode(ErrRoomNotFound))
}
