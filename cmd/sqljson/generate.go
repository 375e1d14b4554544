package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/pthm/sqljson/internal/cli"
	"github.com/pthm/sqljson/pkg/clientgen"
	"github.com/pthm/sqljson/pkg/compiler"
	"github.com/pthm/sqljson/pkg/dbmd"
	"github.com/pthm/sqljson/pkg/modstmt"
)

var (
	genQueries     string
	genStatements  string
	genDBMD        string
	genSQLOutput   string
	genTypesOutput string
	genRuntime     string
	genPackage     string
	genDialect     string
	genWorkers     int
	genOnly        []string
	genWatch       bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate SQL and result types",
	Long: `Generate SQL and result types for every query of the query file.

One SQL file is written per query and result representation, named
"<query>(<representation>).sql". When a runtime is set, result types are
rendered for it as well.

When a statement file is configured, its INSERT, UPDATE and DELETE
statements are written as "<statement>.sql", and with a runtime set, their
parameter names are rendered too.

Supported runtimes: ` + strings.Join(clientgen.Runtimes(), ", "),
	Example: `  # Generate SQL using sqljson.yaml settings
  sqljson generate

  # Also render TypeScript result types
  sqljson generate --runtime typescript --types-output web/src/queries

  # Regenerate whenever the query file or snapshot changes
  sqljson generate --watch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := generateOptions{
			queries:     resolveString(genQueries, cfg.Queries),
			statements:  resolveString(genStatements, cfg.Statements),
			dbmd:        resolveString(genDBMD, cfg.DBMD),
			sqlOutput:   resolveString(genSQLOutput, cfg.Generate.SQLOutput),
			typesOutput: resolveString(genTypesOutput, cfg.Generate.TypesOutput),
			runtime:     resolveString(genRuntime, cfg.Generate.Runtime),
			pkg:         resolveString(genPackage, cfg.Generate.Package),
			dialect:     resolveString(genDialect, cfg.Dialect),
			workers:     resolveInt(genWorkers, cfg.Workers),
			only:        genOnly,
		}
		if opts.runtime != "" {
			if _, err := clientgen.DefaultConfig(opts.runtime); err != nil {
				return cli.ConfigError(fmt.Sprintf("unknown runtime %q", opts.runtime),
					fmt.Errorf("supported runtimes: %s", strings.Join(clientgen.Runtimes(), ", ")))
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !genWatch {
			return runGenerate(ctx, opts)
		}
		if err := runGenerate(ctx, opts); err != nil {
			logger.Error("generation failed", "error", err)
		}
		watched := []string{opts.queries, opts.dbmd}
		if opts.statements != "" {
			watched = append(watched, opts.statements)
		}
		return watch(ctx, watched, func() error {
			return runGenerate(ctx, opts)
		})
	},
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&genQueries, "queries", "", "query definition file (default: queries.yaml)")
	f.StringVar(&genDBMD, "dbmd", "", "database metadata snapshot (default: dbmd.yaml)")
	f.StringVar(&genStatements, "statements", "", "modification statement file (default: none)")
	f.StringVar(&genSQLOutput, "sql-output", "", "directory for generated SQL files")
	f.StringVar(&genTypesOutput, "types-output", "", "directory for generated result types")
	f.StringVar(&genRuntime, "runtime", "", "result type runtime: "+strings.Join(clientgen.Runtimes(), ", "))
	f.StringVar(&genPackage, "package", "", "package or module name for result types (single query only)")
	f.StringVar(&genDialect, "dialect", "", "SQL dialect (default: from the snapshot's DBMS name)")
	f.IntVar(&genWorkers, "workers", 0, "queries generated concurrently (default: GOMAXPROCS)")
	f.StringArrayVar(&genOnly, "query", nil, "generate only the named query (repeatable)")
	f.BoolVar(&genWatch, "watch", false, "regenerate when the query file or snapshot changes")
}

type generateOptions struct {
	queries     string
	statements  string
	dbmd        string
	sqlOutput   string
	typesOutput string
	runtime     string
	pkg         string
	dialect     string
	workers     int
	only        []string
}

func runGenerate(ctx context.Context, opts generateOptions) error {
	g, s, err := loadInputs(opts.queries, opts.dbmd)
	if err != nil {
		return err
	}

	res, err := compiler.Generate(ctx, s, g,
		compiler.WithLogger(logger),
		compiler.WithWorkers(opts.workers),
		compiler.WithDialect(opts.dialect),
		compiler.WithQueries(opts.only...),
	)
	if err != nil {
		return cli.GenerationError("generating queries", err)
	}

	if opts.pkg != "" && opts.runtime != "" && len(res.Queries) > 1 {
		return cli.ConfigError("a result type package name needs a single query",
			fmt.Errorf("select one with --query or unset generate.package"))
	}

	written := 0
	for _, q := range res.Queries {
		if q.Err != nil {
			continue
		}
		paths, err := cli.WriteSQLFiles(opts.sqlOutput, q)
		if err != nil {
			return cli.GeneralError("writing SQL", err)
		}
		if opts.runtime != "" {
			typePaths, err := cli.WriteTypeFiles(opts.typesOutput, opts.runtime, opts.pkg, q)
			if err != nil {
				return cli.GeneralError(fmt.Sprintf("writing result types for %q", q.Name), err)
			}
			paths = append(paths, typePaths...)
		}
		for _, p := range paths {
			logger.Info("wrote file", "path", p)
		}
		written += len(paths)
	}

	failed := res.Failed()
	if !quiet {
		fmt.Printf("Generated %d queries (%s), %d files", len(res.Queries)-len(failed), res.Dialect, written)
		if len(failed) > 0 {
			fmt.Printf(", %d failed", len(failed))
		}
		fmt.Println()
	}
	for _, q := range failed {
		fmt.Fprintf(os.Stderr, "  %s: %v\n", q.Name, q.Err)
	}

	var stmtFailed, stmtTotal int
	if opts.statements != "" {
		stmtTotal, stmtFailed, err = runStatements(ctx, opts, s)
		if err != nil {
			return err
		}
	}

	switch {
	case len(failed) > 0 && stmtFailed > 0:
		return cli.GenerationError(fmt.Sprintf("%d of %d queries and %d of %d statements failed",
			len(failed), len(res.Queries), stmtFailed, stmtTotal), nil)
	case len(failed) > 0:
		return cli.GenerationError(fmt.Sprintf("%d of %d queries failed", len(failed), len(res.Queries)), nil)
	case stmtFailed > 0:
		return cli.GenerationError(fmt.Sprintf("%d of %d statements failed", stmtFailed, stmtTotal), nil)
	}
	return nil
}

// runStatements generates the statement file and writes its SQL and, with
// a runtime set, its parameter declarations. It returns the number of
// statements and of failed ones.
func runStatements(ctx context.Context, opts generateOptions, s *dbmd.Schema) (int, int, error) {
	g, err := modstmt.LoadGroup(opts.statements)
	if err != nil {
		return 0, 0, cli.QueryError("loading statements", err)
	}
	res, err := modstmt.Generate(ctx, s, g,
		modstmt.WithLogger(logger),
		modstmt.WithDialect(opts.dialect),
	)
	if err != nil {
		return 0, 0, cli.GenerationError("generating statements", err)
	}

	written := 0
	for _, st := range res.Statements {
		if st.Err != nil {
			continue
		}
		paths, err := cli.WriteStatementFiles(opts.sqlOutput, opts.typesOutput, opts.runtime, "", st)
		if err != nil {
			return 0, 0, cli.GeneralError(fmt.Sprintf("writing statement %q", st.Name), err)
		}
		for _, p := range paths {
			logger.Info("wrote file", "path", p)
		}
		written += len(paths)
	}

	failed := res.Failed()
	if !quiet {
		fmt.Printf("Generated %d statements, %d files", len(res.Statements)-len(failed), written)
		if len(failed) > 0 {
			fmt.Printf(", %d failed", len(failed))
		}
		fmt.Println()
	}
	for _, st := range failed {
		fmt.Fprintf(os.Stderr, "  %s: %v\n", st.Name, st.Err)
	}
	return len(res.Statements), len(failed), nil
}

// watch calls run after any of paths changes, until ctx is done. Parent
// directories are watched rather than the files, so editors that replace
// a file on save are handled. Bursts of events are coalesced.
func watch(ctx context.Context, paths []string, run func() error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return cli.GeneralError("starting file watcher", err)
	}
	defer func() { _ = w.Close() }()

	targets := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return cli.GeneralError("resolving watched path", err)
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return cli.GeneralError(fmt.Sprintf("watching %s", dir), err)
		}
	}
	if !quiet {
		fmt.Println("Watching for changes, press Ctrl+C to stop")
	}

	const settle = 150 * time.Millisecond
	timer := time.NewTimer(settle)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !targets[filepath.Clean(ev.Name)] || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			logger.Debug("file changed", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(settle)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", "error", err)
		case <-timer.C:
			if err := run(); err != nil {
				logger.Error("generation failed", "error", err)
			}
		}
	}
}
