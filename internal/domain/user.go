package domain

import "time"

// MaxAvatars bounds the avatar collection of a single user.
const MaxAvatars = 50

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the roles an account can be activated with.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Activation is either pending or activated with a role. The zero value is pending.
type Activation struct {
	role Role
}

func Pending() Activation {
	return Activation{}
}

func Activated(role Role) Activation {
	return Activation{role: role}
}

// Role returns the granted role and true when the account has been activated.
func (a Activation) Role() (Role, bool) {
	return a.role, a.role != ""
}

func (a Activation) IsPending() bool {
	return a.role == ""
}

// User is a registered account. PasswordHash never leaves the service layer.
type User struct {
	UserID         string
	Username       string
	PasswordHash   string `json:"-"`
	Activation     Activation
	Email          string
	Avatars        []Avatar
	ActiveAvatarID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Avatar looks up an avatar by id.
func (u *User) Avatar(avatarID string) (Avatar, bool) {
	for _, a := range u.Avatars {
		if a.AvatarID == avatarID {
			return a, true
		}
	}
	return Avatar{}, false
}

// ActiveAvatar returns the avatar referenced by ActiveAvatarID, if any.
func (u *User) ActiveAvatar() (Avatar, bool) {
	if u.ActiveAvatarID == "" {
		return Avatar{}, false
	}
	return u.Avatar(u.ActiveAvatarID)
}

type Avatar struct {
	AvatarID   string
	DataURL    string
	UploadedAt time.Time
}
