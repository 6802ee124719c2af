package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"room-chat/internal/chat"
	"room-chat/internal/middleware"
	"room-chat/internal/mocks"
	"room-chat/internal/models"
)

var caller = models.Identity{ID: uuid.New(), DisplayName: "me", Role: models.RoleUser}

func setupRoomRouter(handler *RoomHandler, identity models.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetIdentity(c, identity)
		c.Next()
	})
	r.GET("/rooms", handler.ListRooms)
	r.GET("/rooms/:room_id/messages", handler.GetRoomMessages)
	r.DELETE("/rooms/:room_id", handler.DeleteRoom)
	return r
}

func TestListRoomsSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, new(mocks.RoomServiceMock))
	router := setupRoomRouter(handler, caller)

	owned := models.Room{ID: uuid.New(), Name: "mine", OwnerID: caller.ID}
	public := models.Room{ID: uuid.New(), Name: "lobby", IsPublic: true, OwnerID: uuid.New()}
	roomRepo.On("ListRoomsForUser", mock.Anything, caller.ID, false).Return([]models.Room{owned, public}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Rooms []struct {
			ID      uuid.UUID `json:"id"`
			IsOwner bool      `json:"is_owner"`
		} `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Rooms, 2)
	require.True(t, body.Rooms[0].IsOwner)
	require.False(t, body.Rooms[1].IsOwner)
	roomRepo.AssertExpectations(t)
}

func TestListRoomsElevatedSeesAll(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, new(mocks.RoomServiceMock))
	admin := models.Identity{ID: uuid.New(), Role: models.RoleAdmin}
	router := setupRoomRouter(handler, admin)

	roomRepo.On("ListRoomsForUser", mock.Anything, admin.ID, true).Return([]models.Room{}, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"rooms":[]}`, rec.Body.String())
	roomRepo.AssertExpectations(t)
}

func TestListRoomsFailure(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	router := setupRoomRouter(NewRoomHandler(roomRepo, new(mocks.RoomServiceMock)), caller)
	roomRepo.On("ListRoomsForUser", mock.Anything, caller.ID, false).Return(nil, errors.New("db down")).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetRoomMessagesSuccess(t *testing.T) {
	service := new(mocks.RoomServiceMock)
	router := setupRoomRouter(NewRoomHandler(new(mocks.RoomRepositoryMock), service), caller)

	roomID := uuid.New()
	msgs := []models.ResolvedMessage{
		models.Message{ID: "01", RoomID: roomID, AuthorID: uuid.New(), Body: "hi"}.Resolve(models.DeletedAuthor),
	}
	service.On("History", mock.Anything, caller, roomID).Return(msgs, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/"+roomID.String()+"/messages", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"display_name":"Deleted user"`)
	require.Contains(t, rec.Body.String(), `"body":"hi"`)
	service.AssertExpectations(t)
}

func TestGetRoomMessagesErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: private", chat.ErrUnauthorized), http.StatusForbidden},
		{fmt.Errorf("room: %w", chat.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: range", chat.ErrStorageFailure), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			service := new(mocks.RoomServiceMock)
			router := setupRoomRouter(NewRoomHandler(new(mocks.RoomRepositoryMock), service), caller)
			roomID := uuid.New()
			service.On("History", mock.Anything, caller, roomID).Return(nil, tc.err).Once()

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/"+roomID.String()+"/messages", nil))

			require.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestGetRoomMessagesInvalidRoomID(t *testing.T) {
	service := new(mocks.RoomServiceMock)
	router := setupRoomRouter(NewRoomHandler(new(mocks.RoomRepositoryMock), service), caller)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/abc/messages", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	service.AssertNotCalled(t, "History", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteRoom(t *testing.T) {
	service := new(mocks.RoomServiceMock)
	router := setupRoomRouter(NewRoomHandler(new(mocks.RoomRepositoryMock), service), caller)
	roomID := uuid.New()
	otherID := uuid.New()
	service.On("DeleteRoom", mock.Anything, caller, roomID).Return(nil).Once()
	service.On("DeleteRoom", mock.Anything, caller, otherID).Return(fmt.Errorf("%w: not owner", chat.ErrUnauthorized)).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/rooms/"+roomID.String(), nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/rooms/"+otherID.String(), nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
	service.AssertExpectations(t)
}
