package services_test

import (
	"context"
	"testing"

	puresqlite "github.com/glebarez/sqlite"
	"github.com/localnerve/jam-build-recordsdb/internal/config"
	"github.com/localnerve/jam-build-recordsdb/internal/services"
	"github.com/localnerve/jam-build-recordsdb/tests/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestHealthCheckHealthy(t *testing.T) {
	e := helpers.NewTestEngine(t)
	helpers.CreateTestCollection(t, e, "posts")
	cfg := &config.Config{DBType: "sqlite", DBDatabase: ":memory:"}

	result := services.HealthCheck(context.Background(), cfg, e.DB, zaptest.NewLogger(t).Sugar())
	assert.Equal(t, "healthy", result.Status)
	assert.Equal(t, "ok", result.Database)
	assert.Equal(t, "disabled", result.Authorizer)
	assert.Equal(t, "1", result.Details["collections"])
	assert.Empty(t, result.ErrorMessage)
}

func TestHealthCheckUnmigrated(t *testing.T) {
	db, err := gorm.Open(puresqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	cfg := &config.Config{DBType: "sqlite", DBDatabase: ":memory:"}

	result := services.HealthCheck(context.Background(), cfg, db, nil)
	assert.Equal(t, "unhealthy", result.Status)
	assert.Equal(t, "unmigrated", result.Database)
	assert.Contains(t, result.ErrorMessage, "Collections table unavailable")
}

func TestHealthCheckAuthorizerUnreachable(t *testing.T) {
	e := helpers.NewTestEngine(t)
	cfg := &config.Config{DBType: "sqlite", AuthzURL: "http://127.0.0.1:1", AuthzClientID: "client"}

	result := services.HealthCheck(context.Background(), cfg, e.DB, nil)
	assert.Equal(t, "unhealthy", result.Status)
	assert.Equal(t, "ok", result.Database)
	assert.Equal(t, "unreachable", result.Authorizer)
	assert.Contains(t, result.Details, "authorizer_error")
}
