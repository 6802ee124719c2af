package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"room-chat/internal/chat"
	"room-chat/internal/models"
)

type resolverFunc func(ctx context.Context, token string) (models.Identity, error)

func (f resolverFunc) Resolve(ctx context.Context, token string) (models.Identity, error) {
	return f(ctx, token)
}

func newRouter(resolver IdentityResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/me", AuthMiddleware(resolver), func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": identity.ID})
	})
	return router
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	resolver := resolverFunc(func(_ context.Context, token string) (models.Identity, error) {
		switch token {
		case "good":
			return models.Identity{ID: userID, Role: models.RoleUser}, nil
		case "down":
			return models.Identity{}, fmt.Errorf("%w: db", chat.ErrStorageFailure)
		default:
			return models.Identity{}, fmt.Errorf("%w: bad", chat.ErrUnauthenticated)
		}
	})
	router := newRouter(resolver)

	cases := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "jwt", Value: "good"}) }, http.StatusOK},
		{"invalid", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"lookup failure", func(r *http.Request) { r.Header.Set("Authorization", "Bearer down") }, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tc.setup(req)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestIdentityFromMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := IdentityFrom(c)
	assert.False(t, ok)

	SetIdentity(c, models.Identity{ID: uuid.New()})
	_, ok = IdentityFrom(c)
	assert.True(t, ok)
}
