package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-backend/internal/config"
	"cms-backend/internal/domain"
)

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	var cfg config.Config
	cfg.Store.Driver = config.DriverSQLite
	cfg.Database.Path = filepath.Join(t.TempDir(), "nested", "cms.db")

	repos, err := Open(ctx, cfg, logrus.New())
	require.NoError(t, err)
	defer repos.Close()
	require.NoError(t, repos.Init(ctx))

	require.NoError(t, repos.Users.Create(ctx, &domain.User{UserID: "u1", Username: "alice", PasswordHash: "h"}))
	u, err := repos.Users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UserID)
}

func TestOpenUnknownDriver(t *testing.T) {
	var cfg config.Config
	cfg.Store.Driver = "mongo"
	_, err := Open(context.Background(), cfg, logrus.New())
	assert.Error(t, err)
}
