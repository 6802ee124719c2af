package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"room-chat/internal/chat"
	"room-chat/internal/models"
	"room-chat/internal/repositories"
)

var (
	_ chat.RoomDirectory          = (*RoomRepositoryMock)(nil)
	_ repositories.RoomRepository = (*RoomRepositoryMock)(nil)
	_ chat.MessageStore           = (*MessageStoreMock)(nil)
	_ chat.UserDirectory          = (*UserDirectoryMock)(nil)
)

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) GetRoom(ctx context.Context, roomID uuid.UUID) (models.Room, error) {
	args := m.Called(ctx, roomID)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) ListRoomsForUser(ctx context.Context, userID uuid.UUID, all bool) ([]models.Room, error) {
	args := m.Called(ctx, userID, all)
	var rooms []models.Room
	if val := args.Get(0); val != nil {
		rooms = val.([]models.Room)
	}
	return rooms, args.Error(1)
}

func (m *RoomRepositoryMock) DeleteRoom(ctx context.Context, roomID uuid.UUID) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

type MessageStoreMock struct {
	mock.Mock
}

func (m *MessageStoreMock) Append(ctx context.Context, roomID, authorID uuid.UUID, body string, at time.Time) (models.Message, error) {
	args := m.Called(ctx, roomID, authorID, body, at)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageStoreMock) Range(ctx context.Context, roomID uuid.UUID) ([]models.Message, error) {
	args := m.Called(ctx, roomID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageStoreMock) DeleteAll(ctx context.Context, roomID uuid.UUID) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

type UserDirectoryMock struct {
	mock.Mock
}

func (m *UserDirectoryMock) GetUsers(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	args := m.Called(ctx, ids)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

type RoomServiceMock struct {
	mock.Mock
}

func (m *RoomServiceMock) History(ctx context.Context, identity models.Identity, roomID uuid.UUID) ([]models.ResolvedMessage, error) {
	args := m.Called(ctx, identity, roomID)
	var msgs []models.ResolvedMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ResolvedMessage)
	}
	return msgs, args.Error(1)
}

func (m *RoomServiceMock) DeleteRoom(ctx context.Context, identity models.Identity, roomID uuid.UUID) error {
	args := m.Called(ctx, identity, roomID)
	return args.Error(0)
}
