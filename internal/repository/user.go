package repository

import (
	"context"

	"cms-backend/internal/domain"
)

// UserRepository defines persistence operations for User entities.
// Every method that touches more than one field of a user does so in a
// single atomic store operation.
type UserRepository interface {
	Init(ctx context.Context) error
	// Create inserts the user if and only if the username is free.
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	SetActivation(ctx context.Context, userID string, activation domain.Activation) error
	// SetEmail stores email, or removes it when email is empty.
	SetEmail(ctx context.Context, userID, email string) error
	// SwapPasswordHash replaces the hash only while it still equals oldHash.
	SwapPasswordHash(ctx context.Context, userID, oldHash, newHash string) error
	// AppendAvatar adds the avatar and makes it active unless the user already holds max avatars.
	AppendAvatar(ctx context.Context, userID string, avatar domain.Avatar, max int) error
	SetActiveAvatar(ctx context.Context, userID, avatarID string) error
	// RemoveAvatar deletes a non-active avatar and returns it; a missing id yields (nil, nil).
	RemoveAvatar(ctx context.Context, userID, avatarID string) (*domain.Avatar, error)
}
