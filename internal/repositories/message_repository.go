package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"

	"room-chat/internal/models"
)

// MessageRepo is the postgres message log. seq gives the append order.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append stores a message. A room deleted meanwhile surfaces as ErrRoomNotFound.
func (r *MessageRepo) Append(ctx context.Context, roomID, authorID uuid.UUID, body string, at time.Time) (models.Message, error) {
	msg := models.Message{
		ID:        ulid.Make().String(),
		RoomID:    roomID,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: at,
	}
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO messages (id, room_id, author_id, body, created_at) VALUES (:id, :room_id, :author_id, :body, :created_at)`, msg)
	if isForeignKeyViolation(err) {
		return models.Message{}, ErrRoomNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Range returns the room's messages oldest first from a single statement snapshot.
func (r *MessageRepo) Range(ctx context.Context, roomID uuid.UUID) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, room_id, author_id, body, created_at FROM messages WHERE room_id=$1 ORDER BY seq ASC`, roomID)
	return msgs, err
}

// DeleteAll removes every message of the room.
func (r *MessageRepo) DeleteAll(ctx context.Context, roomID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE room_id=$1`, roomID)
	return err
}
