package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func openBadger(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBadgerAppendThenRangeReturnsAscendingOrder(t *testing.T) {
	req := require.New(t)
	store := NewBadgerMessageStore(openBadger(t), logs.GetLoggerFromLevel(slog.LevelDebug))
	ctx := context.Background()
	room := uuid.New()
	author := uuid.New()
	at := time.Now().UTC().Truncate(time.Microsecond)

	var ids []string
	for i := 0; i < 20; i++ {
		msg, err := store.Append(ctx, room, author, fmt.Sprintf("message %d", i), at)
		req.NoError(err)
		req.Equal(room, msg.RoomID)
		ids = append(ids, msg.ID)

		// read-your-writes
		got, err := store.Range(ctx, room)
		req.NoError(err)
		req.Len(got, i+1)
		req.Equal(msg.ID, got[i].ID)
	}

	got, err := store.Range(ctx, room)
	req.NoError(err)
	req.Len(got, len(ids))
	for i, msg := range got {
		req.Equal(ids[i], msg.ID)
		req.Equal(fmt.Sprintf("message %d", i), msg.Body)
		req.Equal(author, msg.AuthorID)
		req.True(at.Equal(msg.CreatedAt))
	}
}

func TestBadgerRangeIsScopedToRoom(t *testing.T) {
	req := require.New(t)
	store := NewBadgerMessageStore(openBadger(t), slog.Default())
	ctx := context.Background()
	roomA, roomB := uuid.New(), uuid.New()

	_, err := store.Append(ctx, roomA, uuid.New(), "in a", time.Now())
	req.NoError(err)
	_, err = store.Append(ctx, roomB, uuid.New(), "in b", time.Now())
	req.NoError(err)

	got, err := store.Range(ctx, roomA)
	req.NoError(err)
	req.Len(got, 1)
	req.Equal("in a", got[0].Body)

	empty, err := store.Range(ctx, uuid.New())
	req.NoError(err)
	req.NotNil(empty)
	req.Empty(empty)
}

func TestBadgerDeleteAllEmptiesOnlyThatRoom(t *testing.T) {
	req := require.New(t)
	store := NewBadgerMessageStore(openBadger(t), slog.Default())
	ctx := context.Background()
	roomA, roomB := uuid.New(), uuid.New()

	for i := 0; i < 3; i++ {
		_, err := store.Append(ctx, roomA, uuid.New(), "a", time.Now())
		req.NoError(err)
	}
	_, err := store.Append(ctx, roomB, uuid.New(), "b", time.Now())
	req.NoError(err)

	req.NoError(store.DeleteAll(ctx, roomA))

	got, err := store.Range(ctx, roomA)
	req.NoError(err)
	req.Empty(got)
	got, err = store.Range(ctx, roomB)
	req.NoError(err)
	req.Len(got, 1)
}
