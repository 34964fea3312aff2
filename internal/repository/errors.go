package repository

import "errors"

var (
	ErrNotFound       = errors.New("record not found")
	ErrUsernameTaken  = errors.New("username already taken")
	ErrAvatarLimit    = errors.New("avatar limit reached")
	ErrAvatarNotFound = errors.New("avatar not found")
	ErrActiveAvatar   = errors.New("avatar is active")
	// ErrConflict is returned when a conditional write lost a race it could not retry.
	ErrConflict      = errors.New("concurrent modification")
	ErrInvalidCursor = errors.New("invalid cursor")
)
