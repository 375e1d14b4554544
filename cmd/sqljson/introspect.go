package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/sqljson/internal/cli"
	"github.com/pthm/sqljson/pkg/dbmd"
	"github.com/pthm/sqljson/pkg/introspect"
)

var (
	introspectDB      string
	introspectOutput  string
	introspectSchemas []string
	introspectExclude []string
	introspectStdout  bool
)

var introspectCmd = &cobra.Command{
	Use:   "introspect",
	Short: "Write a metadata snapshot from a database",
	Long: `Read tables, columns, primary keys and foreign keys from a live
PostgreSQL database and write them as a metadata snapshot. The snapshot is
written as JSON when the output file ends in .json and as YAML otherwise.`,
	Example: `  # Snapshot the public schema
  sqljson introspect --db postgres://localhost/pharma

  # Snapshot two schemas, leaving out migration bookkeeping
  sqljson introspect --schema public --schema audit --exclude schema_migrations

  # Print the snapshot instead of writing it
  sqljson introspect --stdout`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := resolveDSN(introspectDB)
		if err != nil {
			return err
		}
		db, err := openDB(cfg.Database.Driver, dsn)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		schemas := introspectSchemas
		if len(schemas) == 0 {
			schemas = cfg.Introspect.Schemas
		}
		exclude := append(append([]string(nil), cfg.Introspect.ExcludeTables...), introspectExclude...)

		s, err := introspect.Database(cmd.Context(), db,
			introspect.WithSchemas(schemas...),
			introspect.WithExcludeTables(exclude...),
			introspect.WithQueryTimeout(cfg.Introspect.Timeout),
			introspect.WithLogger(logger),
		)
		if err != nil {
			return cli.GeneralError("reading database metadata", err)
		}

		if introspectStdout {
			out, err := dbmd.Marshal(s)
			if err != nil {
				return cli.GeneralError("encoding snapshot", err)
			}
			_, err = os.Stdout.Write(out)
			return err
		}

		output := resolveString(introspectOutput, cfg.ResolvedSnapshotPath())
		if err := dbmd.Save(output, s); err != nil {
			return cli.GeneralError("writing snapshot", err)
		}
		if !quiet {
			fmt.Printf("Wrote %s: %d tables, %d foreign keys\n", output, len(s.Tables), len(s.ForeignKeys))
		}
		return nil
	},
}

func init() {
	f := introspectCmd.Flags()
	f.StringVar(&introspectDB, "db", "", "database URL (default: database settings or DATABASE_URL)")
	f.StringVar(&introspectOutput, "output", "", "snapshot file (default: introspect.output, then dbmd)")
	f.StringArrayVar(&introspectSchemas, "schema", nil, "schema to include (repeatable, default: introspect.schemas)")
	f.StringArrayVar(&introspectExclude, "exclude", nil, "table to leave out (repeatable)")
	f.BoolVar(&introspectStdout, "stdout", false, "print the snapshot as YAML instead of writing it")
}
