package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"room-chat/internal/chat"
	"room-chat/internal/models"
)

const CookieName = "jwt"

// UserLookup loads the account behind a validated token.
type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
}

// Resolver turns a session token into a verified identity. Display fields and
// role always come from the stored account, never from the token.
type Resolver struct {
	tokens TokenValidator
	users  UserLookup
}

func NewResolver(tokens TokenValidator, users UserLookup) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

func (r *Resolver) Resolve(ctx context.Context, token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, fmt.Errorf("%w: missing token", chat.ErrUnauthenticated)
	}
	userID, err := r.tokens.ValidateToken(ctx, token)
	if err != nil {
		if errors.Is(err, chat.ErrUnauthenticated) {
			return models.Identity{}, err
		}
		return models.Identity{}, fmt.Errorf("%w: %v", chat.ErrUnauthenticated, err)
	}
	user, err := r.users.GetUser(ctx, userID)
	if errors.Is(err, chat.ErrNotFound) {
		return models.Identity{}, fmt.Errorf("%w: user %s no longer exists", chat.ErrUnauthenticated, userID)
	}
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: user lookup: %v", chat.ErrStorageFailure, err)
	}
	return models.IdentityFromUser(user), nil
}

// TokenFromRequest reads the session token from the jwt cookie, a bearer
// Authorization header or the token query parameter, in that order.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return r.URL.Query().Get("token")
}
