package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"room-chat/internal/models"
)

// RoomRepository reads room metadata and performs the room deletion step.
type RoomRepository interface {
	GetRoom(ctx context.Context, roomID uuid.UUID) (models.Room, error)
	ListRoomsForUser(ctx context.Context, userID uuid.UUID, all bool) ([]models.Room, error)
	DeleteRoom(ctx context.Context, roomID uuid.UUID) error
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

const roomColumns = `r.id, r.name, r.description, r.is_public, r.owner_id, r.created_at`

type inviteRow struct {
	RoomID uuid.UUID `db:"room_id"`
	UserID uuid.UUID `db:"user_id"`
}

// GetRoom fetches a room with its invite list.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID uuid.UUID) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM rooms r WHERE r.id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	if err != nil {
		return models.Room{}, err
	}

	var invited []uuid.UUID
	if err := r.db.SelectContext(ctx, &invited, `SELECT user_id FROM room_invites WHERE room_id=$1 ORDER BY user_id`, roomID); err != nil {
		return models.Room{}, err
	}
	room.InvitedUserIDs = invited
	return room, nil
}

// ListRoomsForUser returns rooms visible to the user: public, owned or invited.
// all lists every room, for elevated roles.
func (r *RoomRepo) ListRoomsForUser(ctx context.Context, userID uuid.UUID, all bool) ([]models.Room, error) {
	var rooms []models.Room
	var err error
	if all {
		err = r.db.SelectContext(ctx, &rooms, `SELECT `+roomColumns+` FROM rooms r ORDER BY r.created_at DESC`)
	} else {
		err = r.db.SelectContext(ctx, &rooms, `SELECT `+roomColumns+` FROM rooms r
        WHERE r.is_public = TRUE
        OR r.owner_id = $1
        OR EXISTS(SELECT 1 FROM room_invites ri WHERE ri.room_id = r.id AND ri.user_id = $1)
        ORDER BY r.created_at DESC`, userID)
	}
	if err != nil || len(rooms) == 0 {
		return rooms, err
	}

	ids := lo.Map(rooms, func(room models.Room, _ int) uuid.UUID { return room.ID })
	query, args, err := sqlx.In(`SELECT room_id, user_id FROM room_invites WHERE room_id IN (?) ORDER BY user_id`, ids)
	if err != nil {
		return nil, err
	}
	var invites []inviteRow
	if err := r.db.SelectContext(ctx, &invites, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	byRoom := lo.GroupBy(invites, func(i inviteRow) uuid.UUID { return i.RoomID })
	for i := range rooms {
		rooms[i].InvitedUserIDs = lo.Map(byRoom[rooms[i].ID], func(i inviteRow, _ int) uuid.UUID { return i.UserID })
	}
	return rooms, nil
}

// DeleteRoom removes a room. Invites and messages go with it through ON DELETE CASCADE.
func (r *RoomRepo) DeleteRoom(ctx context.Context, roomID uuid.UUID) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE room_id=$1`, roomID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id=$1`, roomID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = ErrRoomNotFound
		return err
	}
	return tx.Commit()
}
