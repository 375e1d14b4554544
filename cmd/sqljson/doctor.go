package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/sqljson/internal/cli"
	"github.com/pthm/sqljson/internal/doctor"
	"github.com/pthm/sqljson/internal/generator"
	"github.com/pthm/sqljson/pkg/dbcheck"
	"github.com/pthm/sqljson/pkg/introspect"
)

var (
	doctorDB      string
	doctorOffline bool
	doctorVerbose bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks",
	Long: `Check that the query file and metadata snapshot load, that every query
generates and, when a database is configured, that the snapshot matches the
live schema and the database accepts every generated statement.`,
	Example: `  # Run health checks
  sqljson doctor --db postgres://localhost/pharma

  # Skip the database checks
  sqljson doctor --offline --verbose`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := []doctor.Option{
			doctor.WithGeneratorOptions(
				generator.WithLogger(logger),
				generator.WithWorkers(cfg.Workers),
				generator.WithDialect(cfg.Dialect),
			),
			doctor.WithCheckOptions(dbcheck.WithLogger(logger)),
		}

		if !doctorOffline {
			if dsn, err := resolveDSN(doctorDB); err == nil {
				db, err := openDB(cfg.Database.Driver, dsn)
				if err != nil {
					return err
				}
				defer func() { _ = db.Close() }()
				opts = append(opts, doctor.WithDatabase(db,
					introspect.WithSchemas(cfg.Introspect.Schemas...),
					introspect.WithExcludeTables(cfg.Introspect.ExcludeTables...),
					introspect.WithQueryTimeout(cfg.Introspect.Timeout),
					introspect.WithLogger(logger),
				))
			}
		}

		if !quiet {
			fmt.Println("sqljson doctor - Health Check")
		}

		d := doctor.New(cfg.Queries, cfg.DBMD, opts...)
		report, err := d.Run(cmd.Context())
		if err != nil {
			return cli.GeneralError("running doctor", err)
		}

		report.Print(os.Stdout, doctorVerbose || verbose > 0)

		if report.HasErrors() {
			return cli.GeneralError("health checks failed", nil)
		}
		return nil
	},
}

func init() {
	f := doctorCmd.Flags()
	f.StringVar(&doctorDB, "db", "", "database URL (default: database settings or DATABASE_URL)")
	f.BoolVar(&doctorOffline, "offline", false, "skip the database checks")
	f.BoolVar(&doctorVerbose, "details", false, "show check details")
}
