package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/localnerve/jam-build-recordsdb/internal/config"
	"github.com/localnerve/jam-build-recordsdb/internal/models"
	"github.com/localnerve/jam-build-recordsdb/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Authorizer   string            `json:"authorizer"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

func (r *HealthCheckResult) fail(message string) {
	r.Status = "unhealthy"
	if r.ErrorMessage == "" {
		r.ErrorMessage = message
	} else {
		r.ErrorMessage += "; " + message
	}
}

// HealthCheck performs a comprehensive health check of the service: database
// reachability, the collections meta-table, and the authorizer when configured.
func HealthCheck(ctx context.Context, cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger) HealthCheckResult {
	if log == nil {
		log = zap.S()
	}

	result := HealthCheckResult{
		Status:  "healthy",
		Details: make(map[string]string),
	}

	// Check database connectivity
	sqlDB, err := db.DB()
	if err != nil {
		result.Database = "error"
		result.Details["database_error"] = err.Error()
		result.fail(fmt.Sprintf("Database connection error: %v", err))
		log.Warnw("health check failed, database connection", "error", err)
	} else if err := sqlDB.PingContext(ctx); err != nil {
		result.Database = "unreachable"
		result.Details["database_ping_error"] = err.Error()
		result.fail(fmt.Sprintf("Database ping failed: %v", err))
		log.Warnw("health check failed, database ping", "error", err)
	} else {
		result.Database = "ok"
		result.Details["database_type"] = cfg.DBType
		result.Details["database_name"] = cfg.DBDatabase

		var count int64
		if err := db.WithContext(ctx).Model(&models.Collection{}).Count(&count).Error; err != nil {
			result.Database = "unmigrated"
			result.Details["collections_error"] = err.Error()
			result.fail(fmt.Sprintf("Collections table unavailable: %v", err))
		} else {
			result.Details["collections"] = strconv.FormatInt(count, 10)
		}
	}

	// Check Authorizer connectivity
	if !cfg.AuthzEnabled() {
		result.Authorizer = "disabled"
	} else if err := utils.PingAuthorizer(ctx, cfg.AuthzURL); err != nil {
		result.Authorizer = "unreachable"
		result.Details["authorizer_error"] = err.Error()
		result.fail(fmt.Sprintf("Authorizer ping failed: %v", err))
		log.Warnw("health check failed, authorizer ping", "error", err)
	} else {
		result.Authorizer = "ok"
		result.Details["authorizer_url"] = cfg.AuthzURL
	}

	if result.Status == "healthy" {
		log.Debug("health check passed")
	}

	return result
}
