package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cms-backend/internal/avatar"
	"cms-backend/internal/domain"
	"cms-backend/internal/repository"
)

// ActiveAvatarAlias resolves to the user's active avatar in lookups.
const ActiveAvatarAlias = "active"

// AvatarMirror keeps an external copy of processed avatars.
type AvatarMirror interface {
	PutAvatar(ctx context.Context, userID, avatarID string, img avatar.Image) error
	DeleteAvatar(ctx context.Context, userID, avatarID, contentType string) error
}

// AvatarLookup is the public view of one of a user's avatars. Avatar is nil
// when the active avatar was requested and none is set.
type AvatarLookup struct {
	UserID   string
	Username string
	Avatar   *domain.Avatar
}

// AvatarService manages the avatar collection of the calling user.
type AvatarService interface {
	Add(ctx context.Context, userID, dataURL string) (*domain.Avatar, error)
	SetActive(ctx context.Context, userID, avatarID string) error
	Delete(ctx context.Context, userID, avatarID string) error
	Get(ctx context.Context, userID, avatarID string) (*AvatarLookup, error)
}

type avatarService struct {
	users  repository.UserRepository
	mirror AvatarMirror
	logger *logrus.Logger
}

// NewAvatarService returns an AvatarService. mirror may be nil.
func NewAvatarService(users repository.UserRepository, mirror AvatarMirror, logger *logrus.Logger) AvatarService {
	return &avatarService{
		users:  users,
		mirror: mirror,
		logger: logger,
	}
}

func (s *avatarService) Add(ctx context.Context, userID, dataURL string) (*domain.Avatar, error) {
	img, err := avatar.Process(dataURL)
	if err != nil {
		return nil, err
	}

	a := domain.Avatar{
		AvatarID:   uuid.NewString(),
		DataURL:    img.DataURL,
		UploadedAt: time.Now().UTC(),
	}
	if err := s.users.AppendAvatar(ctx, userID, a, domain.MaxAvatars); err != nil {
		switch {
		case errors.Is(err, repository.ErrAvatarLimit):
			return nil, ErrAvatarLimit
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrAvatarConflict
		}
		return nil, userError(err, "append avatar")
	}

	if s.mirror != nil {
		if err := s.mirror.PutAvatar(ctx, userID, a.AvatarID, img); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"user_id":   userID,
				"avatar_id": a.AvatarID,
			}).Warn("avatar mirror upload failed")
		}
	}
	return &a, nil
}

func (s *avatarService) SetActive(ctx context.Context, userID, avatarID string) error {
	avatarID = strings.TrimSpace(avatarID)
	if avatarID == "" {
		return ErrAvatarIDRequired
	}
	if err := s.users.SetActiveAvatar(ctx, userID, avatarID); err != nil {
		switch {
		case errors.Is(err, repository.ErrAvatarNotFound):
			return ErrAvatarNotFound
		case errors.Is(err, repository.ErrConflict):
			return ErrAvatarConflict
		}
		return userError(err, "set active avatar")
	}
	return nil
}

// Delete removes a non-active avatar. Deleting an unknown id succeeds.
func (s *avatarService) Delete(ctx context.Context, userID, avatarID string) error {
	avatarID = strings.TrimSpace(avatarID)
	if avatarID == "" {
		return ErrAvatarIDRequired
	}
	removed, err := s.users.RemoveAvatar(ctx, userID, avatarID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrActiveAvatar):
			return ErrActiveAvatar
		case errors.Is(err, repository.ErrConflict):
			return ErrAvatarConflict
		}
		return userError(err, "remove avatar")
	}
	if removed == nil || s.mirror == nil {
		return nil
	}
	if err := s.mirror.DeleteAvatar(ctx, userID, avatarID, avatar.ContentTypeOf(removed.DataURL)); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":   userID,
			"avatar_id": avatarID,
		}).Warn("avatar mirror delete failed")
	}
	return nil
}

func (s *avatarService) Get(ctx context.Context, userID, avatarID string) (*AvatarLookup, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, userError(err, "load user")
	}

	out := &AvatarLookup{UserID: user.UserID, Username: user.Username}
	if avatarID == "" || avatarID == ActiveAvatarAlias {
		if a, ok := user.ActiveAvatar(); ok {
			out.Avatar = &a
		}
		return out, nil
	}

	a, ok := user.Avatar(avatarID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAvatarNotFound, avatarID)
	}
	out.Avatar = &a
	return out, nil
}
