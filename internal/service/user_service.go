package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	"cms-backend/internal/auth"
	"cms-backend/internal/domain"
	"cms-backend/internal/repository"
)

// MinPasswordLength applies to password changes.
const MinPasswordLength = 8

var emailPattern = regexp.MustCompile(`@`)

// LoginResult is what a successful login hands back to the caller.
type LoginResult struct {
	Token string
	User  *domain.User
	Role  domain.Role
}

// UserService describes account lifecycle operations.
type UserService interface {
	Register(ctx context.Context, username, password, email string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Profile(ctx context.Context, userID string) (*domain.User, error)
	UpdateEmail(ctx context.Context, userID, email string) (string, error)
	RemoveEmail(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	Activate(ctx context.Context, username string, role domain.Role) (*domain.User, error)
	ActivatePending(ctx context.Context) ([]domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

type userService struct {
	users  repository.UserRepository
	hasher auth.PasswordHasher
	tokens *auth.TokenService

	// dummyHash keeps unknown-username logins as slow as wrong-password ones.
	dummyHash string
}

func NewUserService(users repository.UserRepository, hasher auth.PasswordHasher, tokens *auth.TokenService) (UserService, error) {
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}
	return &userService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		dummyHash: dummy,
	}, nil
}

type credentials struct {
	Username string
	Password string
}

func (c credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Username, validation.Required, validation.By(notBlank)),
		validation.Field(&c.Password, validation.Required),
	)
}

// notBlank rejects whitespace-only strings. Usernames are otherwise matched verbatim.
func notBlank(value interface{}) error {
	if s, _ := value.(string); strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

func validateEmail(email string) error {
	if err := validation.Validate(email, validation.Required, validation.Match(emailPattern)); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

func (s *userService) Register(ctx context.Context, username, password, email string) (*domain.User, error) {
	email = strings.TrimSpace(email)

	if err := (credentials{Username: username, Password: password}).Validate(); err != nil {
		return nil, ErrCredentialsRequired
	}
	if email != "" {
		if err := validateEmail(email); err != nil {
			return nil, err
		}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		UserID:       uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Activation:   domain.Pending(),
		Email:        email,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return sanitizeUser(user), nil
}

func (s *userService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if err := (credentials{Username: username, Password: password}).Validate(); err != nil {
		return nil, ErrCredentialsRequired
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	role, activated := user.Activation.Role()
	if !activated {
		return nil, ErrNotActivated
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.UserID, user.Username, role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: sanitizeUser(user), Role: role}, nil
}

func (s *userService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) UpdateEmail(ctx context.Context, userID, email string) (string, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return "", err
	}
	if err := s.users.SetEmail(ctx, userID, email); err != nil {
		return "", userError(err, "update email")
	}
	return email, nil
}

func (s *userService) RemoveEmail(ctx context.Context, userID string) error {
	if err := s.users.SetEmail(ctx, userID, ""); err != nil {
		return userError(err, "remove email")
	}
	return nil
}

func (s *userService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return ErrPasswordsRequired
	}
	if err := validation.Validate(newPassword, validation.RuneLength(MinPasswordLength, 0)); err != nil {
		return ErrPasswordTooShort
	}

	user, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		return ErrIncorrectPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.SwapPasswordHash(ctx, userID, user.PasswordHash, hash); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrPasswordConflict
		}
		return userError(err, "update password")
	}
	return nil
}

// Activate grants role to the account named username.
func (s *userService) Activate(ctx context.Context, username string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, userError(err, "load user")
	}
	activation := domain.Activated(role)
	if err := s.users.SetActivation(ctx, user.UserID, activation); err != nil {
		return nil, userError(err, "activate user")
	}
	user.Activation = activation
	return sanitizeUser(user), nil
}

// ActivatePending activates every pending account with the user role and returns them.
func (s *userService) ActivatePending(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var activated []domain.User
	for _, u := range users {
		if !u.Activation.IsPending() {
			continue
		}
		if err := s.users.SetActivation(ctx, u.UserID, domain.Activated(domain.RoleUser)); err != nil {
			return activated, userError(err, "activate "+u.Username)
		}
		u.Activation = domain.Activated(domain.RoleUser)
		activated = append(activated, *sanitizeUser(&u))
	}
	return activated, nil
}

func (s *userService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		users[i] = *sanitizeUser(&users[i])
	}
	return users, nil
}

func (s *userService) load(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, userError(err, "load user")
	}
	return user, nil
}

func userError(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// sanitizeUser returns a copy without the password hash.
func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	out := *user
	out.PasswordHash = ""
	return &out
}
