package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-backend/internal/domain"
	"cms-backend/internal/repository"
)

func newTestUsers(t *testing.T) repository.UserRepository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cms.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := NewUserRepository(db)
	require.NoError(t, users.Init(context.Background()))
	return users
}

func seedUser(t *testing.T, users repository.UserRepository, username string) *domain.User {
	t.Helper()
	u := &domain.User{UserID: "id-" + username, Username: username, PasswordHash: "hash"}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func avatarN(i int) domain.Avatar {
	return domain.Avatar{
		AvatarID:   fmt.Sprintf("av-%d", i),
		DataURL:    "data:image/png;base64,AAAA",
		UploadedAt: time.Date(2025, 1, 1, 0, 0, i, 0, time.UTC),
	}
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers(t)

	u := &domain.User{UserID: "u1", Username: "alice", PasswordHash: "h", Email: "a@example.com"}
	require.NoError(t, users.Create(ctx, u))
	assert.False(t, u.CreatedAt.IsZero())

	got, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "a@example.com", got.Email)
	assert.True(t, got.Activation.IsPending())
	assert.Empty(t, got.Avatars)

	_, err = users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers(t)
	seedUser(t, users, "alice")

	err := users.Create(ctx, &domain.User{UserID: "other", Username: "alice", PasswordHash: "h"})
	assert.ErrorIs(t, err, repository.ErrUsernameTaken)
}

func TestUserRepository_ConcurrentRegistration(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers(t)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		taken   int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := users.Create(ctx, &domain.User{UserID: fmt.Sprintf("u%d", i), Username: "bob", PasswordHash: "h"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, repository.ErrUsernameTaken):
				taken++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, taken)

	all, err := users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUserRepository_SetActivation(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers(t)
	u := seedUser(t, users, "carol")

	require.NoError(t, users.SetActivation(ctx, u.UserID, domain.Activated(domain.RoleAdmin)))
	got, err := users.GetByID(ctx, u.UserID)
	require.NoError(t, err)
	role, ok := got.Activation.Role()
	assert.True(t, ok)
	assert.Equal(t, domain.RoleAdmin, role)

	assert.ErrorIs(t, users.SetActivation(ctx, "nope", domain.Activated(domain.RoleUser)), repository.ErrNotFound)
}

func TestUserRepository_EmailAndPassword(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers(t)
	u := seedUser(t, users, "dave")

	require.NoError(t, users.SetEmail(ctx, u.UserID, "d@example.com"))
	got, err := users.GetByID(ctx, u.UserID)
	require.NoError(t, err)
	assert.Equal(t, "d@example.com", got.Email)

	require.NoError(t, users.SetEmail(ctx, u.UserID, ""))
	got, err = users.GetByID(ctx, u.UserID)
	require.NoError(t, err)
	assert.Empty(t, got.Email)

	require.NoError(t, users.SwapPasswordHash(ctx, u.UserID, "hash", "hash2"))
	assert.ErrorIs(t, users.SwapPasswordHash(ctx, u.UserID, "hash", "hash3"), repository.ErrConflict)
	assert.ErrorIs(t, users.SwapPasswordHash(ctx, "nope", "hash", "hash3"), repository.ErrNotFound)
}

func TestUserRepository_AvatarBound(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers(t)
	u := seedUser(t, users, "erin")

	for i := 0; i < domain.MaxAvatars-1; i++ {
		require.NoError(t, users.AppendAvatar(ctx, u.UserID, avatarN(i), domain.MaxAvatars))
	}
	// 49 -> 50
	require.NoError(t, users.AppendAvatar(ctx, u.UserID, avatarN(49), domain.MaxAvatars))
	// 50 -> 51 is refused
	err := users.AppendAvatar(ctx, u.UserID, avatarN(50), domain.MaxAvatars)
	assert.ErrorIs(t, err, repository.ErrAvatarLimit)

	got, err := users.GetByID(ctx, u.UserID)
	require.NoError(t, err)
	assert.Len(t, got.Avatars, domain.MaxAvatars)
	assert.Equal(t, "av-49", got.ActiveAvatarID)
	assert.Equal(t, "av-0", got.Avatars[0].AvatarID)

	assert.ErrorIs(t, users.AppendAvatar(ctx, "nope", avatarN(1), domain.MaxAvatars), repository.ErrNotFound)
}

func TestUserRepository_ConcurrentAvatarAppend(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers(t)
	u := seedUser(t, users, "frank")

	for i := 0; i < domain.MaxAvatars-2; i++ {
		require.NoError(t, users.AppendAvatar(ctx, u.UserID, avatarN(i), domain.MaxAvatars))
	}

	var wg sync.WaitGroup
	for i := 100; i < 110; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = users.AppendAvatar(ctx, u.UserID, avatarN(i), domain.MaxAvatars)
		}(i)
	}
	wg.Wait()

	got, err := users.GetByID(ctx, u.UserID)
	require.NoError(t, err)
	assert.Len(t, got.Avatars, domain.MaxAvatars)
	_, ok := got.ActiveAvatar()
	assert.True(t, ok)
}

func TestUserRepository_ActiveAvatarLifecycle(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers(t)
	u := seedUser(t, users, "gina")

	require.NoError(t, users.AppendAvatar(ctx, u.UserID, avatarN(1), domain.MaxAvatars))
	require.NoError(t, users.AppendAvatar(ctx, u.UserID, avatarN(2), domain.MaxAvatars))

	_, err := users.RemoveAvatar(ctx, u.UserID, "av-2")
	assert.ErrorIs(t, err, repository.ErrActiveAvatar)

	assert.ErrorIs(t, users.SetActiveAvatar(ctx, u.UserID, "av-9"), repository.ErrAvatarNotFound)
	assert.ErrorIs(t, users.SetActiveAvatar(ctx, "nope", "av-1"), repository.ErrNotFound)
	require.NoError(t, users.SetActiveAvatar(ctx, u.UserID, "av-1"))

	removed, err := users.RemoveAvatar(ctx, u.UserID, "av-2")
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, "av-2", removed.AvatarID)

	removed, err = users.RemoveAvatar(ctx, u.UserID, "av-2")
	require.NoError(t, err)
	assert.Nil(t, removed)

	got, err := users.GetByID(ctx, u.UserID)
	require.NoError(t, err)
	require.Len(t, got.Avatars, 1)
	assert.Equal(t, "av-1", got.ActiveAvatarID)
}

func TestUserRepository_CreateDBError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+users`).WillReturnError(errors.New("disk full"))

	err = NewUserRepository(db).Create(context.Background(), &domain.User{UserID: "u", Username: "x"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrUsernameTaken)
	assert.Regexp(t, regexp.MustCompile(`insert user: .*disk full`), err.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetReadsInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT user_id, username.*FROM users\s+WHERE user_id = \?`).
		WithArgs("u").
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "username", "password_hash", "role", "email", "active_avatar_id", "created_at", "updated_at",
		}).AddRow("u", "alice", "h", "user", "", "av-2", now, now))
	mock.ExpectQuery(`(?s)FROM user_avatars`).
		WithArgs("u").
		WillReturnRows(sqlmock.NewRows([]string{"avatar_id", "data_url", "uploaded_at"}).AddRow("av-2", "d", now))
	mock.ExpectCommit()

	got, err := NewUserRepository(db).GetByID(context.Background(), "u")
	require.NoError(t, err)
	active, ok := got.ActiveAvatar()
	require.True(t, ok)
	assert.Equal(t, "av-2", active.AvatarID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetMissingRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)FROM users\s+WHERE username = \?`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectRollback()

	_, err = NewUserRepository(db).GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_AppendAvatarRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT \(SELECT COUNT`).
		WithArgs("u", "u").
		WillReturnRows(sqlmock.NewRows([]string{"users", "avatars"}).AddRow(1, 3))
	mock.ExpectExec(`(?s)INSERT INTO user_avatars`).WillReturnResult(sqlmock.NewResult(4, 1))
	mock.ExpectExec(`(?s)UPDATE users SET active_avatar_id`).WillReturnError(errors.New("io timeout"))
	mock.ExpectRollback()

	err = NewUserRepository(db).AppendAvatar(context.Background(), "u", avatarN(1), domain.MaxAvatars)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "activate avatar")
	assert.NoError(t, mock.ExpectationsWereMet())
}
