package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	for _, key := range []string{
		"PORT", "DB_TYPE", "DB_HOST", "DB_PORT", "DB_DATABASE", "DB_USER", "DB_PASSWORD",
		"DB_CONNECTION_LIMIT", "DB_CONNECT_ATTEMPTS", "DB_LOG_LEVEL", "LOG_LEVEL",
		"LOG_DEVELOPMENT", "AUTHZ_URL", "AUTHZ_CLIENT_ID", "REALTIME_KEEPALIVE_SECONDS",
		"REALTIME_BUFFER", "TABLE_CACHE_SIZE",
	} {
		// registers the restore, then leaves the key unset for godotenv
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("DB_DATABASE", "records")
	t.Setenv("DB_USER", "app")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "mysql", cfg.DBType)
	assert.Equal(t, "3306", cfg.DBPort)
	assert.Equal(t, 10, cfg.DBConnectionLimit)
	assert.Equal(t, 30, cfg.RealtimeKeepAliveSeconds)
	assert.Equal(t, 256, cfg.TableCacheSize)
	assert.False(t, cfg.AuthzEnabled())
}

func TestLoadFromEnvFile(t *testing.T) {
	isolate(t)
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("DB_TYPE=Postgres\nDB_DATABASE=fromfile\nDB_USER=fileuser\nREALTIME_BUFFER=8\n"), 0o600))
	t.Setenv("ENV_FILE", envFile)
	t.Setenv("DB_USER", "envuser")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBType)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, "fromfile", cfg.DBDatabase)
	assert.Equal(t, "envuser", cfg.DBUser)
	assert.Equal(t, 8, cfg.RealtimeBuffer)
}

func TestLoadValidation(t *testing.T) {
	isolate(t)
	_, err := Load()
	assert.ErrorContains(t, err, "DB_DATABASE")

	t.Setenv("DB_DATABASE", "records")
	_, err = Load()
	assert.ErrorContains(t, err, "DB_USER")

	t.Setenv("DB_TYPE", "sqlite")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsSQLite())

	t.Setenv("AUTHZ_URL", "http://authorizer:8080")
	_, err = Load()
	assert.ErrorContains(t, err, "AUTHZ_CLIENT_ID")

	t.Setenv("AUTHZ_CLIENT_ID", "client")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.AuthzEnabled())
}

func TestGetEnvAsIntFallsBack(t *testing.T) {
	t.Setenv("RECORDSDB_TEST_INT", "not-a-number")
	assert.Equal(t, 7, getEnvAsInt("RECORDSDB_TEST_INT", 7))
	t.Setenv("RECORDSDB_TEST_INT", "12")
	assert.Equal(t, 12, getEnvAsInt("RECORDSDB_TEST_INT", 7))
}
