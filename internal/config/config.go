package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port string

	// Database configuration
	DBType            string // mysql, mariadb, postgres, sqlite, sqlite3, sqlserver
	DBHost            string
	DBPort            string
	DBDatabase        string
	DBUser            string
	DBPassword        string
	DBConnectionLimit int
	DBConnectAttempts int
	DBLogLevel        string

	// Logging
	LogLevel       string
	LogDevelopment bool

	// Authorizer configuration, optional
	AuthzURL      string
	AuthzClientID string

	// Engine tuning
	RealtimeKeepAliveSeconds int
	RealtimeBuffer           int
	TableCacheSize           int
}

// Load loads configuration from the optional env file, then the environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	dbType := strings.ToLower(getEnv("DB_TYPE", "mysql"))

	cfg := &Config{
		Port:                     getEnv("PORT", "3000"),
		DBType:                   dbType,
		DBHost:                   getEnv("DB_HOST", "localhost"),
		DBPort:                   getEnv("DB_PORT", defaultPort(dbType)),
		DBDatabase:               getEnv("DB_DATABASE", ""),
		DBUser:                   getEnv("DB_USER", ""),
		DBPassword:               getEnv("DB_PASSWORD", ""),
		DBConnectionLimit:        getEnvAsInt("DB_CONNECTION_LIMIT", 10),
		DBConnectAttempts:        getEnvAsInt("DB_CONNECT_ATTEMPTS", 5),
		DBLogLevel:               getEnv("DB_LOG_LEVEL", "warn"),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		LogDevelopment:           getEnvAsBool("LOG_DEVELOPMENT", false),
		AuthzURL:                 getEnv("AUTHZ_URL", ""),
		AuthzClientID:            getEnv("AUTHZ_CLIENT_ID", ""),
		RealtimeKeepAliveSeconds: getEnvAsInt("REALTIME_KEEPALIVE_SECONDS", 30),
		RealtimeBuffer:           getEnvAsInt("REALTIME_BUFFER", 64),
		TableCacheSize:           getEnvAsInt("TABLE_CACHE_SIZE", 256),
	}

	// Validate required fields
	if cfg.DBDatabase == "" {
		return nil, fmt.Errorf("DB_DATABASE is required")
	}
	if cfg.DBUser == "" && !cfg.IsSQLite() {
		return nil, fmt.Errorf("DB_USER is required")
	}
	if (cfg.AuthzURL == "") != (cfg.AuthzClientID == "") {
		return nil, fmt.Errorf("AUTHZ_URL and AUTHZ_CLIENT_ID must be set together")
	}

	return cfg, nil
}

// IsSQLite reports whether the database is a local sqlite file
func (c *Config) IsSQLite() bool {
	return c.DBType == "sqlite" || c.DBType == "sqlite3"
}

// AuthzEnabled reports whether an authorizer is configured
func (c *Config) AuthzEnabled() bool {
	return c.AuthzURL != ""
}

func defaultPort(dbType string) string {
	switch dbType {
	case "postgres", "postgresql":
		return "5432"
	case "sqlserver", "mssql":
		return "1433"
	}
	return "3306"
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
