package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/localnerve/jam-build-recordsdb/internal/config"
	"github.com/localnerve/jam-build-recordsdb/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm/logger"
)

func TestDialector(t *testing.T) {
	for dbType, name := range map[string]string{
		"mysql":     "mysql",
		"mariadb":   "mysql",
		"postgres":  "postgres",
		"sqlite":    "sqlite",
		"sqlite3":   "sqlite",
		"sqlserver": "sqlserver",
	} {
		d, err := Dialector(&config.Config{DBType: dbType, DBHost: "db", DBPort: "1", DBDatabase: "records"})
		require.NoError(t, err, dbType)
		assert.Equal(t, name, d.Name(), dbType)
	}

	_, err := Dialector(&config.Config{DBType: "oracle"})
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(&config.Config{
		DBHost: "db", DBPort: "3306", DBUser: "app", DBPassword: "secret", DBDatabase: "records",
	})
	assert.Contains(t, dsn, "app:secret@tcp(db:3306)/records")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, LogLevel("SILENT"))
	assert.Equal(t, logger.Error, LogLevel("error"))
	assert.Equal(t, logger.Info, LogLevel("info"))
	assert.Equal(t, logger.Warn, LogLevel(""))
}

func TestConnectSQLiteFile(t *testing.T) {
	cfg := &config.Config{
		DBType:            "sqlite",
		DBDatabase:        filepath.Join(t.TempDir(), "records.db"),
		DBConnectAttempts: 1,
		DBLogLevel:        "silent",
	}

	db, err := Connect(context.Background(), cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer Close(db)

	require.NoError(t, AutoMigrate(db))
	assert.True(t, db.Migrator().HasTable(&models.Collection{}))
}

func TestConnectUnsupportedType(t *testing.T) {
	_, err := Connect(context.Background(), &config.Config{DBType: "oracle"}, zaptest.NewLogger(t).Sugar())
	assert.ErrorContains(t, err, "unsupported database type")
}
