package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room-chat/internal/chat"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

var roomRowColumns = []string{"id", "name", "description", "is_public", "owner_id", "created_at"}

func TestMessageRepoAppendMapsForeignKeyViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)
	roomID, authorID := uuid.New(), uuid.New()

	mock.ExpectExec(`INSERT INTO messages \(id, room_id, author_id, body, created_at\)`).
		WithArgs(sqlmock.AnyArg(), roomID, authorID, "hi", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23503"})

	_, err := repo.Append(context.Background(), roomID, authorID, "hi", time.Now().UTC())
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, err, chat.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoAppendAssignsSortableID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)
	roomID, authorID := uuid.New(), uuid.New()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO messages`).
		WithArgs(sqlmock.AnyArg(), roomID, authorID, "first", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO messages`).
		WithArgs(sqlmock.AnyArg(), roomID, authorID, "second", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	first, err := repo.Append(context.Background(), roomID, authorID, "first", at)
	require.NoError(t, err)
	second, err := repo.Append(context.Background(), roomID, authorID, "second", at)
	require.NoError(t, err)

	assert.Equal(t, roomID, first.RoomID)
	assert.Equal(t, at, first.CreatedAt)
	assert.Less(t, first.ID, second.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoRangeOrdersByAppendSequence(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)
	roomID, authorID := uuid.New(), uuid.New()
	at := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "room_id", "author_id", "body", "created_at"}).
		AddRow("01A", roomID.String(), authorID.String(), "one", at).
		AddRow("01B", roomID.String(), authorID.String(), "two", at)
	mock.ExpectQuery(`FROM messages WHERE room_id=\$1 ORDER BY seq ASC`).WithArgs(roomID).WillReturnRows(rows)

	msgs, err := repo.Range(context.Background(), roomID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Body)
	assert.Equal(t, "two", msgs[1].Body)
	assert.Equal(t, authorID, msgs[1].AuthorID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoRangeOfEmptyRoomIsEmptySlice(t *testing.T) {
	db, mock := newMockDB(t)
	roomID := uuid.New()
	mock.ExpectQuery(`FROM messages`).WithArgs(roomID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_id", "author_id", "body", "created_at"}))

	msgs, err := NewMessageRepo(db).Range(context.Background(), roomID)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestRoomRepoGetRoomLoadsInvites(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepo(db)
	roomID, ownerID, guestID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(`FROM rooms r WHERE r.id=\$1`).WithArgs(roomID).
		WillReturnRows(sqlmock.NewRows(roomRowColumns).
			AddRow(roomID.String(), "ops", "", false, ownerID.String(), time.Now()))
	mock.ExpectQuery(`SELECT user_id FROM room_invites WHERE room_id=\$1`).WithArgs(roomID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(guestID.String()))

	room, err := repo.GetRoom(context.Background(), roomID)
	require.NoError(t, err)
	assert.Equal(t, "ops", room.Name)
	assert.Equal(t, ownerID, room.OwnerID)
	assert.True(t, room.IsMember(guestID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepoGetRoomNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	roomID := uuid.New()
	mock.ExpectQuery(`FROM rooms r WHERE r.id=\$1`).WithArgs(roomID).
		WillReturnRows(sqlmock.NewRows(roomRowColumns))

	_, err := NewRoomRepo(db).GetRoom(context.Background(), roomID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepoListRoomsForUserGroupsInvites(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepo(db)
	userID, ownerID := uuid.New(), uuid.New()
	public, invited := uuid.New(), uuid.New()
	friend := uuid.New()

	mock.ExpectQuery(`WHERE r.is_public = TRUE`).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(roomRowColumns).
			AddRow(public.String(), "lobby", "", true, ownerID.String(), time.Now()).
			AddRow(invited.String(), "team", "", false, ownerID.String(), time.Now()))
	mock.ExpectQuery(`SELECT room_id, user_id FROM room_invites WHERE room_id IN \(\$1, \$2\)`).
		WithArgs(public, invited).
		WillReturnRows(sqlmock.NewRows([]string{"room_id", "user_id"}).
			AddRow(invited.String(), friend.String()).
			AddRow(invited.String(), userID.String()))

	rooms, err := repo.ListRoomsForUser(context.Background(), userID, false)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Empty(t, rooms[0].InvitedUserIDs)
	assert.Equal(t, []uuid.UUID{friend, userID}, rooms[1].InvitedUserIDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepoListAllRoomsSkipsInvitesWhenEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`FROM rooms r ORDER BY r.created_at DESC`).
		WillReturnRows(sqlmock.NewRows(roomRowColumns))

	rooms, err := NewRoomRepo(db).ListRoomsForUser(context.Background(), uuid.New(), true)
	require.NoError(t, err)
	assert.Empty(t, rooms)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepoDeleteRoomCommits(t *testing.T) {
	db, mock := newMockDB(t)
	roomID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM messages WHERE room_id=\$1`).WithArgs(roomID).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM rooms WHERE id=\$1`).WithArgs(roomID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewRoomRepo(db).DeleteRoom(context.Background(), roomID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepoDeleteMissingRoomRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	roomID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM messages WHERE room_id=\$1`).WithArgs(roomID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM rooms WHERE id=\$1`).WithArgs(roomID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := NewRoomRepo(db).DeleteRoom(context.Background(), roomID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoGetUserNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	id := uuid.New()
	mock.ExpectQuery(`FROM users WHERE id=\$1`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "display_name", "profile_picture", "role"}))

	_, err := NewUserRepo(db).GetUser(context.Background(), id)
	assert.ErrorIs(t, err, ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoGetUsersReturnsExistingOnly(t *testing.T) {
	db, mock := newMockDB(t)
	kept, gone := uuid.New(), uuid.New()
	mock.ExpectQuery(`FROM users WHERE id = ANY\(\$1\)`).WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "display_name", "profile_picture", "role"}).
			AddRow(kept.String(), "k@example.com", "Kept", "", "moderator"))

	users, err := NewUserRepo(db).GetUsers(context.Background(), []uuid.UUID{kept, gone})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, kept, users[0].ID)
	assert.Equal(t, "moderator", users[0].Role)

	none, err := NewUserRepo(db).GetUsers(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
	require.NoError(t, mock.ExpectationsWereMet())
}
