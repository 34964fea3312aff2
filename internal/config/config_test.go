package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into an empty directory so no stray config or .env file is read.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "CMS-Users", cfg.DynamoDB.UsersTable)
	assert.Equal(t, "avatars", cfg.Storage.KeyPrefix)
	assert.Equal(t, time.Minute, cfg.RateLimit.LoginWindow)
	assert.ErrorContains(t, cfg.Validate(), "jwt secret")
}

func TestLoadFromEnv(t *testing.T) {
	chdir(t)
	t.Setenv("CMS_AUTH_JWTSECRET", "s3cret")
	t.Setenv("CMS_AUTH_TOKENTTL", "30m")
	t.Setenv("CMS_STORE_DRIVER", "dynamodb")
	t.Setenv("CMS_DYNAMODB_CREATETABLES", "true")
	t.Setenv("CMS_RATELIMIT_LOGINLIMIT", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, DriverDynamoDB, cfg.Store.Driver)
	assert.True(t, cfg.DynamoDB.CreateTables)
	assert.Equal(t, 5, cfg.RateLimit.LoginLimit)
	assert.NoError(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(`
# comment
CMS_AUTH_JWTSECRET="from-dotenv"
CMS_SERVER_ADDR=127.0.0.1:9000
`), 0o600))
	// values already in the environment win over .env
	t.Setenv("CMS_SERVER_ADDR", "127.0.0.1:7000")
	t.Setenv("CMS_AUTH_JWTSECRET", "")
	require.NoError(t, os.Unsetenv("CMS_AUTH_JWTSECRET"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Auth.JWTSecret)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Addr)
}

func TestValidate(t *testing.T) {
	var cfg Config
	cfg.Auth.JWTSecret = "k"
	cfg.Store.Driver = "mongo"
	assert.ErrorContains(t, cfg.Validate(), "unknown store driver")

	cfg.Store.Driver = DriverSQLite
	assert.Error(t, cfg.Validate())
	cfg.Database.Path = "x.db"
	assert.NoError(t, cfg.Validate())

	cfg.RateLimit.LoginLimit = 3
	assert.Error(t, cfg.Validate())
}
