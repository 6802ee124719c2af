package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"room-chat/internal/models"
)

// BadgerMessageStore is the embedded message log.
//
// Keys are "msg:{room_id}:{ulid}". ULIDs sort lexicographically by creation
// time with monotonic entropy inside a millisecond, so a prefix scan returns
// a room's messages in append order.
type BadgerMessageStore struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBadgerMessageStore(db *badger.DB, log *slog.Logger) *BadgerMessageStore {
	return &BadgerMessageStore{db: db, log: log}
}

type diskMessage struct {
	ID       string    `json:"id"`
	AuthorID uuid.UUID `json:"author_id"`
	Body     string    `json:"body"`
	At       int64     `json:"at"`
}

func roomPrefix(roomID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", roomID))
}

func (s *BadgerMessageStore) Append(ctx context.Context, roomID, authorID uuid.UUID, body string, at time.Time) (models.Message, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, err
	}
	id := ulid.Make().String()
	bytes, err := json.Marshal(diskMessage{ID: id, AuthorID: authorID, Body: body, At: at.UnixNano()})
	if err != nil {
		return models.Message{}, err
	}
	key := append(roomPrefix(roomID), id...)
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, bytes)
	}); err != nil {
		return models.Message{}, err
	}
	return models.Message{ID: id, RoomID: roomID, AuthorID: authorID, Body: body, CreatedAt: at}, nil
}

// Range reads the room inside one read transaction, which is a consistent snapshot.
func (s *BadgerMessageStore) Range(ctx context.Context, roomID uuid.UUID) ([]models.Message, error) {
	msgs := []models.Message{}
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := roomPrefix(roomID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var dm diskMessage
			if err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &dm)
			}); err != nil {
				return err
			}
			msgs = append(msgs, models.Message{
				ID:        dm.ID,
				RoomID:    roomID,
				AuthorID:  dm.AuthorID,
				Body:      dm.Body,
				CreatedAt: time.Unix(0, dm.At).UTC(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *BadgerMessageStore) DeleteAll(ctx context.Context, roomID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.DropPrefix(roomPrefix(roomID)); err != nil {
		return err
	}
	s.log.Debug("room messages dropped", "room_id", roomID)
	return nil
}
