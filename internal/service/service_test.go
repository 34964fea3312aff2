package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"cms-backend/internal/auth"
	"cms-backend/internal/domain"
	"cms-backend/internal/repository"
	"cms-backend/internal/repository/sqlite"
)

type stores struct {
	users    repository.UserRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
}

func newStores(t *testing.T) stores {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "cms.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := stores{
		users:    sqlite.NewUserRepository(db),
		posts:    sqlite.NewPostRepository(db),
		comments: sqlite.NewCommentRepository(db),
	}
	ctx := context.Background()
	require.NoError(t, s.users.Init(ctx))
	require.NoError(t, s.posts.Init(ctx))
	require.NoError(t, s.comments.Init(ctx))
	return s
}

func newTokens() *auth.TokenService {
	return auth.NewTokenService("test-secret", time.Hour, nil)
}

func newUsers(t *testing.T, s stores) UserService {
	t.Helper()
	svc, err := NewUserService(s.users, auth.NewBcryptHasher(bcrypt.MinCost), newTokens())
	require.NoError(t, err)
	return svc
}

// activeUser registers username and activates it as a regular user.
func activeUser(t *testing.T, svc UserService, username string) auth.Claim {
	t.Helper()
	ctx := context.Background()
	u, err := svc.Register(ctx, username, "password123", "")
	require.NoError(t, err)
	_, err = svc.Activate(ctx, username, domain.RoleUser)
	require.NoError(t, err)
	return auth.Claim{UserID: u.UserID, Username: username, Role: domain.RoleUser}
}

func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}
