package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"room-chat/internal/chat"
	"room-chat/internal/models"
)

var (
	_ chat.MessageStore  = (*MemoryBackend)(nil)
	_ chat.RoomDirectory = (*MemoryBackend)(nil)
	_ chat.UserDirectory = (*MemoryBackend)(nil)
)

// MemoryBackend is an in-process room directory, user directory and message
// log with the cascade semantics of the postgres schema.
type MemoryBackend struct {
	mu       sync.Mutex
	rooms    map[uuid.UUID]models.Room
	users    map[uuid.UUID]models.User
	messages map[uuid.UUID][]models.Message
	seq      int

	// BeforeAppend runs outside the lock before each append when set.
	BeforeAppend func(roomID uuid.UUID, body string)

	// AppendErr fails every append when set.
	AppendErr error

	// BeforeRange runs outside the lock before each range when set.
	BeforeRange func(roomID uuid.UUID)
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		rooms:    make(map[uuid.UUID]models.Room),
		users:    make(map[uuid.UUID]models.User),
		messages: make(map[uuid.UUID][]models.Message),
	}
}

func (b *MemoryBackend) PutRoom(room models.Room) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rooms[room.ID] = room
}

func (b *MemoryBackend) PutUser(user models.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[user.ID] = user
}

func (b *MemoryBackend) RemoveUser(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.users, id)
}

func (b *MemoryBackend) GetRoom(_ context.Context, roomID uuid.UUID) (models.Room, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room, ok := b.rooms[roomID]
	if !ok {
		return models.Room{}, fmt.Errorf("room %s: %w", roomID, chat.ErrNotFound)
	}
	return room, nil
}

func (b *MemoryBackend) DeleteRoom(_ context.Context, roomID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.rooms[roomID]; !ok {
		return fmt.Errorf("room %s: %w", roomID, chat.ErrNotFound)
	}
	delete(b.rooms, roomID)
	delete(b.messages, roomID)
	return nil
}

func (b *MemoryBackend) GetUser(_ context.Context, id uuid.UUID) (models.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	user, ok := b.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", id, chat.ErrNotFound)
	}
	return user, nil
}

func (b *MemoryBackend) GetUsers(_ context.Context, ids []uuid.UUID) ([]models.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := b.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (b *MemoryBackend) Append(_ context.Context, roomID, authorID uuid.UUID, body string, at time.Time) (models.Message, error) {
	if b.BeforeAppend != nil {
		b.BeforeAppend(roomID, body)
	}
	if b.AppendErr != nil {
		return models.Message{}, b.AppendErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.rooms[roomID]; !ok {
		return models.Message{}, fmt.Errorf("room %s: %w", roomID, chat.ErrNotFound)
	}
	b.seq++
	msg := models.Message{
		ID:        fmt.Sprintf("%020d", b.seq),
		RoomID:    roomID,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: at,
	}
	b.messages[roomID] = append(b.messages[roomID], msg)
	return msg, nil
}

func (b *MemoryBackend) Range(_ context.Context, roomID uuid.UUID) ([]models.Message, error) {
	if b.BeforeRange != nil {
		b.BeforeRange(roomID)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := make([]models.Message, len(b.messages[roomID]))
	copy(msgs, b.messages[roomID])
	return msgs, nil
}

func (b *MemoryBackend) DeleteAll(_ context.Context, roomID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.messages, roomID)
	return nil
}
