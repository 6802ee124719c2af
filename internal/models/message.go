package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a persisted room message. It never changes after append.
type Message struct {
	ID        string    `db:"id" json:"id"`
	RoomID    uuid.UUID `db:"room_id" json:"room_id"`
	AuthorID  uuid.UUID `db:"author_id" json:"author_id"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ResolvedMessage is a message joined with its author's current projection.
type ResolvedMessage struct {
	Message
	Author
}

// Resolve joins m with the given author projection.
func (m Message) Resolve(author Author) ResolvedMessage {
	return ResolvedMessage{Message: m, Author: author}
}
