package service

import (
	"errors"
	"fmt"

	"cms-backend/internal/auth"
)

var (
	ErrCredentialsRequired = errors.New("username and password are required")
	ErrUsernameTaken       = errors.New("username already exists")
	// ErrInvalidCredentials covers both an unknown username and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotActivated       = errors.New("user account not activated")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidRole        = errors.New("invalid role")

	ErrInvalidEmail      = errors.New("invalid email")
	ErrPasswordsRequired = errors.New("missing passwords")
	ErrPasswordTooShort  = errors.New("new password too short")
	ErrIncorrectPassword = errors.New("incorrect old password")
	// ErrPasswordConflict is returned when the password changed between verification and update.
	ErrPasswordConflict = errors.New("password changed concurrently")

	ErrAvatarIDRequired = errors.New("missing avatar id")
	ErrAvatarNotFound   = errors.New("avatar not found")
	ErrActiveAvatar     = errors.New("cannot delete active avatar")
	ErrAvatarLimit      = errors.New("avatar limit reached")
	ErrAvatarConflict   = errors.New("avatars changed concurrently")

	ErrPostIDRequired         = errors.New("post id is required")
	ErrPostNotFound           = errors.New("post not found")
	ErrPostFieldsRequired     = errors.New("title and content are required")
	ErrInvalidPostStatus      = errors.New("invalid post status")
	ErrCommentNotFound        = errors.New("comment not found")
	ErrCommentContentRequired = errors.New("content is required")
	ErrParentCommentNotFound  = errors.New("parent comment not found")
	ErrInvalidCursor          = errors.New("invalid pagination key")
)

var (
	ErrPostEditForbidden      = fmt.Errorf("%w: not the post author", auth.ErrForbidden)
	ErrPostDeleteForbidden    = fmt.Errorf("%w: not the post author", auth.ErrForbidden)
	ErrCommentDeleteForbidden = fmt.Errorf("%w: not the comment author", auth.ErrForbidden)
)
