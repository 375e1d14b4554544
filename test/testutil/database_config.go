package testutil

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig says where the integration tests find PostgreSQL.
type DatabaseConfig struct {
	// URL is an admin connection string. Empty means a container is started.
	URL string
	// Image is the container image used when URL is empty.
	Image string
	// StartupTimeout bounds how long the container may take to accept
	// connections.
	StartupTimeout time.Duration
	// KeepDatabases leaves per-test databases in place for inspection.
	KeepDatabases bool
}

// GetDatabaseConfig reads the database configuration from the environment.
// DATABASE_URL wins over the DATABASE_HOST family; with neither set the
// tests run against a throwaway container.
func GetDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		Image:          getEnv("SQLJSON_TEST_IMAGE", "postgres:18-alpine"),
		StartupTimeout: time.Duration(getEnvInt("SQLJSON_TEST_STARTUP_SECONDS", 60)) * time.Second,
		KeepDatabases:  getEnvBool("SQLJSON_TEST_KEEP_DATABASES", false),
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.URL = url
		return cfg
	}

	if host := os.Getenv("DATABASE_HOST"); host != "" {
		cfg.URL = buildDatabaseURL(
			getEnv("DATABASE_USER", "postgres"),
			getEnv("DATABASE_PASSWORD", ""),
			host,
			getEnv("DATABASE_PORT", "5432"),
			getEnv("DATABASE_NAME", "postgres"),
			getEnv("DATABASE_SSLMODE", "prefer"),
		)
	}
	return cfg
}

// buildDatabaseURL constructs a PostgreSQL connection string.
func buildDatabaseURL(user, password, host, port, dbname, sslmode string) string {
	if password != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			user, password, host, port, dbname, sslmode)
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s",
		user, host, port, dbname, sslmode)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvBool accepts "1", "true" and "yes" as true.
func getEnvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val == "1" || val == "true" || val == "yes"
}
