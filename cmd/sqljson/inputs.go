package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/pthm/sqljson/internal/cli"
	"github.com/pthm/sqljson/pkg/dbmd"
	"github.com/pthm/sqljson/pkg/query"
)

// loadInputs reads the query group and the metadata snapshot.
func loadInputs(queriesPath, dbmdPath string) (*query.Group, *dbmd.Schema, error) {
	g, err := query.LoadGroup(queriesPath)
	if err != nil {
		return nil, nil, cli.QueryError("loading queries", err)
	}
	s, err := dbmd.Load(dbmdPath)
	if err != nil {
		return nil, nil, cli.QueryError("loading database metadata", err)
	}
	return g, s, nil
}

// resolveDSN returns the connection string: the flag value, then the
// configured database settings, then DATABASE_URL.
func resolveDSN(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if cfg.Database.URL != "" || cfg.Database.Host != "" {
		dsn, err := cfg.DSN()
		if err != nil {
			return "", cli.ConfigError("building database connection string", err)
		}
		return dsn, nil
	}
	if env := os.Getenv("DATABASE_URL"); env != "" {
		return env, nil
	}
	return "", cli.ConfigError("no database configured", fmt.Errorf("use --db, database.url or DATABASE_URL"))
}

// openDB opens and pings a database with the configured driver, "postgres"
// (lib/pq) or "pgx".
func openDB(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, cli.DBConnectError("opening database", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, cli.DBConnectError("connecting to database", err)
	}
	return db, nil
}
