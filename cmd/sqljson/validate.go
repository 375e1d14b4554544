package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/pthm/sqljson/internal/cli"
	"github.com/pthm/sqljson/pkg/compiler"
	"github.com/pthm/sqljson/pkg/dbcheck"
)

var (
	validateQueries      string
	validateDBMD         string
	validateDialect      string
	validateDB           string
	validatePrintExplain bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that every query generates",
	Long: `Plan and assemble every query against the metadata snapshot without
writing any files, and report the outcome of each query.

With --db, every generated statement is also explained by the database,
inside a transaction that is rolled back, so SQL fragments such as record
conditions and custom joins are checked against the live schema.`,
	Example: `  # Validate using config file settings
  sqljson validate

  # Validate against an Oracle snapshot
  sqljson validate --dbmd oracle-dbmd.yaml

  # Also have the database explain every statement
  sqljson validate --db postgres://localhost/pharma`,
	RunE: func(cmd *cobra.Command, args []string) error {
		queriesPath := resolveString(validateQueries, cfg.Queries)
		dbmdPath := resolveString(validateDBMD, cfg.DBMD)

		g, s, err := loadInputs(queriesPath, dbmdPath)
		if err != nil {
			return err
		}

		res, err := compiler.Generate(cmd.Context(), s, g,
			compiler.WithLogger(logger),
			compiler.WithWorkers(cfg.Workers),
			compiler.WithDialect(resolveString(validateDialect, cfg.Dialect)),
		)
		if err != nil {
			return cli.GenerationError("validating queries", err)
		}

		re := lipgloss.NewRenderer(os.Stdout)
		ok := re.NewStyle().Foreground(lipgloss.Color("2"))
		bad := re.NewStyle().Foreground(lipgloss.Color("1"))
		faint := re.NewStyle().Faint(true)

		failed := res.Failed()
		for _, q := range res.Queries {
			if q.Err != nil {
				fmt.Printf("%s %s\n", bad.Render("✗"), q.Name)
				fmt.Printf("    %s\n", q.Err)
				continue
			}
			if quiet {
				continue
			}
			fmt.Printf("%s %s %s\n", ok.Render("✓"), q.Name, faint.Render(fmt.Sprintf("(%d representations)", len(q.Reprs))))
		}

		if len(failed) > 0 {
			return cli.GenerationError(fmt.Sprintf("%d of %d queries failed", len(failed), len(res.Queries)), nil)
		}

		if validatePrintExplain {
			_, err := dbcheck.New(nil, dbcheck.WithDryRun(os.Stdout)).Check(cmd.Context(), res)
			return err
		}
		if validateDB != "" {
			if err := checkStatements(cmd, res, bad); err != nil {
				return err
			}
		}

		if !quiet {
			fmt.Printf("\nAll %d queries are valid for %s.\n", len(res.Queries), res.Dialect)
		}
		return nil
	},
}

func checkStatements(cmd *cobra.Command, res *compiler.Result, bad lipgloss.Style) error {
	dsn, err := resolveDSN(validateDB)
	if err != nil {
		return err
	}
	db, err := openDB(cfg.Database.Driver, dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	failures, err := dbcheck.New(db, dbcheck.WithLogger(logger)).Check(cmd.Context(), res)
	if err != nil {
		return cli.DBConnectError("checking statements", err)
	}
	for _, f := range failures {
		fmt.Printf("%s %s (%s)\n", bad.Render("✗"), f.Query, f.Repr)
		fmt.Printf("    %s\n", f.Err)
	}
	if len(failures) > 0 {
		return cli.GenerationError(fmt.Sprintf("database rejected %d statements", len(failures)), nil)
	}
	return nil
}

func init() {
	f := validateCmd.Flags()
	f.StringVar(&validateQueries, "queries", "", "query definition file (default: queries.yaml)")
	f.StringVar(&validateDBMD, "dbmd", "", "database metadata snapshot (default: dbmd.yaml)")
	f.StringVar(&validateDialect, "dialect", "", "SQL dialect (default: from the snapshot's DBMS name)")
	f.StringVar(&validateDB, "db", "", "database URL to explain every statement against")
	f.BoolVar(&validatePrintExplain, "print-explain", false, "print the EXPLAIN statements instead of running them")
}
