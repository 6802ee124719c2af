package models

import "github.com/google/uuid"

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

// ParseRole maps a stored role string to a Role. Unknown values are demoted to RoleUser.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin, RoleModerator:
		return Role(s)
	default:
		return RoleUser
	}
}

// HasElevatedAccess reports whether the role may read and write any room.
func HasElevatedAccess(r Role) bool {
	return r == RoleAdmin || r == RoleModerator
}

// User is the subset of the account record the chat service reads.
type User struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	DisplayName    string    `db:"display_name" json:"display_name"`
	ProfilePicture string    `db:"profile_picture" json:"profile_picture"`
	Role           string    `db:"role" json:"role"`
}

// Author returns the render-time projection of the user.
func (u User) Author() Author {
	name := u.DisplayName
	if name == "" {
		name = u.Email
	}
	return Author{DisplayName: name, AvatarRef: u.ProfilePicture, Role: ParseRole(u.Role)}
}

// Author is how a message author is displayed.
type Author struct {
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref"`
	Role        Role   `json:"role"`
}

// DeletedAuthor is substituted when a message author no longer exists.
var DeletedAuthor = Author{
	DisplayName: "Deleted user",
	AvatarRef:   "/uploads/placeholder.jpg",
	Role:        RoleUser,
}

// Identity is the verified caller of a connection or request.
type Identity struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarRef   string    `json:"avatar_ref"`
	Role        Role      `json:"role"`
}

// IdentityFromUser builds the identity snapshot for an authenticated user.
func IdentityFromUser(u User) Identity {
	a := u.Author()
	return Identity{ID: u.ID, DisplayName: a.DisplayName, AvatarRef: a.AvatarRef, Role: a.Role}
}

// Author returns the identity as an author projection.
func (i Identity) Author() Author {
	return Author{DisplayName: i.DisplayName, AvatarRef: i.AvatarRef, Role: i.Role}
}
