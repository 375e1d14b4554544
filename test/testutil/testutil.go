// Package testutil provides shared helpers for the sqljson integration
// tests: a PostgreSQL server, isolated per-test databases loaded with the
// drug schema, and deterministic data.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

//go:embed testdata/pharma.sql
var pharmaSQL string

var (
	singletonOnce sync.Once
	singletonDSN  string
	singletonErr  error

	templateOnce sync.Once
	templateName string
	templateErr  error
)

// ensureSingleton returns the admin DSN, starting a container on first use
// unless the environment names a server.
func ensureSingleton() (string, error) {
	singletonOnce.Do(func() {
		cfg := GetDatabaseConfig()
		if cfg.URL != "" {
			singletonDSN = cfg.URL
			return
		}

		ctx := context.Background()
		container, err := postgres.Run(ctx,
			cfg.Image,
			postgres.WithDatabase("postgres"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithEnv(map[string]string{
				"POSTGRES_INITDB_ARGS": "--auth-host=trust",
			}),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(cfg.StartupTimeout),
			),
		)
		if err != nil {
			singletonErr = fmt.Errorf("failed to start PostgreSQL container: %w", err)
			return
		}

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = container.Terminate(ctx)
			singletonErr = fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
			return
		}
		// The container is left to ryuk.
		singletonDSN = dsn
	})

	return singletonDSN, singletonErr
}

// ensureTemplate creates a database holding the drug schema that per-test
// databases are copied from.
func ensureTemplate(adminDSN string) (string, error) {
	templateOnce.Do(func() {
		name := uniqueDBName("sqljson_template")
		if err := createDatabase(adminDSN, name, ""); err != nil {
			templateErr = fmt.Errorf("failed to create template database: %w", err)
			return
		}
		if err := exec(replaceDBName(adminDSN, name), pharmaSQL); err != nil {
			templateErr = fmt.Errorf("failed to load drug schema: %w", err)
			return
		}
		// Copying works without the flag, only slower.
		_ = exec(adminDSN, fmt.Sprintf("ALTER DATABASE %s WITH is_template = true", name))
		templateName = name
	})

	return templateName, templateErr
}

// DB returns a connection to a new database holding the drug schema and no
// rows. The database is dropped when the test completes. DB skips the test
// in short mode.
func DB(tb testing.TB) *sql.DB {
	tb.Helper()
	if testing.Short() {
		tb.Skip("skipping integration test in short mode")
	}

	adminDSN, err := ensureSingleton()
	require.NoError(tb, err, "failed to reach PostgreSQL")

	tmpl, err := ensureTemplate(adminDSN)
	require.NoError(tb, err, "failed to create template database")

	dbName := uniqueDBName("test")
	require.NoError(tb, createDatabase(adminDSN, dbName, tmpl), "failed to create test database")

	db, err := sql.Open("pgx", replaceDBName(adminDSN, dbName))
	require.NoError(tb, err, "failed to connect to test database")
	require.NoError(tb, db.Ping(), "failed to ping test database")

	keep := GetDatabaseConfig().KeepDatabases
	tb.Cleanup(func() {
		_ = db.Close()
		if keep {
			tb.Logf("kept database %s", dbName)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = dropDatabase(ctx, adminDSN, dbName)
	})

	return db
}

// PharmaSQL returns the DDL of the drug schema.
func PharmaSQL() string {
	return pharmaSQL
}

func uniqueDBName(prefix string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}

func exec(dsn, stmt string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err = db.ExecContext(ctx, stmt)
	return err
}

func createDatabase(adminDSN, name, template string) error {
	stmt := "CREATE DATABASE " + name
	if template != "" {
		// A template cannot be copied while anyone is connected to it.
		_ = exec(adminDSN, terminateSQL(template))
		stmt += " WITH TEMPLATE " + template
	}
	return exec(adminDSN, stmt)
}

func dropDatabase(ctx context.Context, adminDSN, name string) error {
	db, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	_, _ = db.ExecContext(ctx, terminateSQL(name))
	_, err = db.ExecContext(ctx, "DROP DATABASE IF EXISTS "+name)
	return err
}

func terminateSQL(dbName string) string {
	return fmt.Sprintf(`
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = '%s' AND pid <> pg_backend_pid()`, dbName)
}

// replaceDBName swaps the database of a URL-form DSN.
func replaceDBName(dsn, name string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return dsn
	}
	u.Path = "/" + strings.TrimPrefix(name, "/")
	return u.String()
}
