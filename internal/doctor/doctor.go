// Package doctor provides health checks for a sqljson project.
//
// The doctor command checks that the query definitions and the metadata
// snapshot load, that every query generates, and, when a database is
// available, that the snapshot still matches the live schema and that the
// database accepts every generated statement.
//
// Example usage:
//
//	d := doctor.New("queries.yaml", "dbmd.yaml", doctor.WithDatabase(db))
//	report, err := d.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true) // verbose=true
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pthm/sqljson/internal/generator"
	"github.com/pthm/sqljson/pkg/dbcheck"
	"github.com/pthm/sqljson/pkg/dbmd"
	"github.com/pthm/sqljson/pkg/introspect"
	"github.com/pthm/sqljson/pkg/query"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical issue that will cause failures.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

func (s Status) color() lipgloss.Color {
	switch s {
	case StatusPass:
		return lipgloss.Color("2")
	case StatusWarn:
		return lipgloss.Color("3")
	default:
		return lipgloss.Color("1")
	}
}

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	// Category groups related checks (e.g., "Metadata", "Queries").
	Category string

	// Name is a short identifier for the check.
	Name string

	// Status is the check outcome.
	Status Status

	// Message is a human-readable description of the result.
	Message string

	// Details provides additional information for verbose output.
	Details string

	// FixHint suggests how to resolve issues.
	FixHint string
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	// Summary counts.
	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Print writes the report to w. Colors are used only when w is a terminal.
func (r *Report) Print(w io.Writer, verbose bool) {
	re := lipgloss.NewRenderer(w)
	heading := re.NewStyle().Bold(true)
	faint := re.NewStyle().Faint(true)

	categories := make(map[string][]CheckResult)
	var categoryOrder []string
	for _, check := range r.Checks {
		if _, exists := categories[check.Category]; !exists {
			categoryOrder = append(categoryOrder, check.Category)
		}
		categories[check.Category] = append(categories[check.Category], check)
	}

	for _, cat := range categoryOrder {
		_, _ = fmt.Fprintf(w, "\n%s\n", heading.Render(cat))
		for _, check := range categories[cat] {
			symbol := re.NewStyle().Foreground(check.Status.color()).Render(check.Status.Symbol())
			_, _ = fmt.Fprintf(w, "  %s %s\n", symbol, check.Message)
			if verbose && check.Details != "" {
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", faint.Render(line))
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      Fix: %s\n", check.FixHint)
			}
		}
	}

	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Doctor runs the health checks of one project.
type Doctor struct {
	queriesPath string
	dbmdPath    string

	db        introspect.Querier
	introOpts []introspect.Option
	genOpts   []generator.Option
	checkOpts []dbcheck.Option
	snapshot  *dbmd.Schema
	group     *query.Group
	generated *generator.Result
}

// Option configures a Doctor.
type Option func(*Doctor)

// WithDatabase enables the database checks. The options are passed to
// introspect.Database when reading the live schema.
func WithDatabase(db introspect.Querier, opts ...introspect.Option) Option {
	return func(d *Doctor) {
		d.db = db
		d.introOpts = opts
	}
}

// WithGeneratorOptions sets the options used for the generation check.
func WithGeneratorOptions(opts ...generator.Option) Option {
	return func(d *Doctor) { d.genOpts = opts }
}

// WithCheckOptions sets the options used when explaining generated
// statements against the database.
func WithCheckOptions(opts ...dbcheck.Option) Option {
	return func(d *Doctor) { d.checkOpts = opts }
}

// New creates a Doctor for the given query file and metadata snapshot.
func New(queriesPath, dbmdPath string, opts ...Option) *Doctor {
	d := &Doctor{queriesPath: queriesPath, dbmdPath: dbmdPath}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes all health checks and returns a report. Failing checks are
// recorded in the report; the error is reserved for cancellation.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	d.checkSnapshot(report)
	d.checkQueries(report)
	if err := d.checkGeneration(ctx, report); err != nil {
		return nil, fmt.Errorf("checking generation: %w", err)
	}
	if err := d.checkDatabase(ctx, report); err != nil {
		return nil, fmt.Errorf("checking database: %w", err)
	}

	return report, nil
}

func (d *Doctor) checkSnapshot(report *Report) {
	if _, err := os.Stat(d.dbmdPath); err != nil {
		report.AddCheck(CheckResult{
			Category: "Metadata",
			Name:     "snapshot_exists",
			Status:   StatusFail,
			Message:  fmt.Sprintf("Metadata snapshot not found at %s", d.dbmdPath),
			FixHint:  "Run 'sqljson introspect' to write a snapshot from your database",
		})
		return
	}

	s, err := dbmd.Load(d.dbmdPath)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Metadata",
			Name:     "snapshot_valid",
			Status:   StatusFail,
			Message:  "Metadata snapshot is invalid",
			Details:  err.Error(),
			FixHint:  "Fix the snapshot file or regenerate it with 'sqljson introspect'",
		})
		return
	}
	d.snapshot = s

	report.AddCheck(CheckResult{
		Category: "Metadata",
		Name:     "snapshot_valid",
		Status:   StatusPass,
		Message: fmt.Sprintf("Snapshot %s: %d tables, %d foreign keys",
			d.dbmdPath, len(s.Tables), len(s.ForeignKeys)),
		Details: fmt.Sprintf("DBMS: %s %s", s.DBMSName, s.DBMSVersion),
	})
}

func (d *Doctor) checkQueries(report *Report) {
	g, err := query.LoadGroup(d.queriesPath)
	if err != nil {
		hint := "Fix the reported problem in the query file"
		if errors.Is(err, os.ErrNotExist) {
			hint = "Create the query file or set 'queries' in sqljson.yaml"
		}
		report.AddCheck(CheckResult{
			Category: "Queries",
			Name:     "queries_valid",
			Status:   StatusFail,
			Message:  fmt.Sprintf("Cannot load queries from %s", d.queriesPath),
			Details:  err.Error(),
			FixHint:  hint,
		})
		return
	}
	d.group = g

	names := make([]string, len(g.Queries))
	for i := range g.Queries {
		names[i] = g.Queries[i].Name
	}
	report.AddCheck(CheckResult{
		Category: "Queries",
		Name:     "queries_valid",
		Status:   StatusPass,
		Message:  fmt.Sprintf("%s defines %d queries", d.queriesPath, len(g.Queries)),
		Details:  strings.Join(names, "\n"),
	})
}

func (d *Doctor) checkGeneration(ctx context.Context, report *Report) error {
	if d.snapshot == nil || d.group == nil {
		report.AddCheck(CheckResult{
			Category: "Generation",
			Name:     "generation_skipped",
			Status:   StatusWarn,
			Message:  "Generation not checked",
			Details:  "Both the metadata snapshot and the query file must load first",
		})
		return nil
	}

	res, err := generator.Generate(ctx, d.snapshot, d.group, d.genOpts...)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		report.AddCheck(CheckResult{
			Category: "Generation",
			Name:     "generation",
			Status:   StatusFail,
			Message:  "Query group cannot be generated",
			Details:  err.Error(),
		})
		return nil
	}

	d.generated = res
	for _, q := range res.Queries {
		if q.Err != nil {
			report.AddCheck(CheckResult{
				Category: "Generation",
				Name:     "query_" + q.Name,
				Status:   StatusFail,
				Message:  fmt.Sprintf("Query %q fails to generate", q.Name),
				Details:  q.Err.Error(),
				FixHint:  "Run 'sqljson validate' for the full diagnostic",
			})
			continue
		}
		report.AddCheck(CheckResult{
			Category: "Generation",
			Name:     "query_" + q.Name,
			Status:   StatusPass,
			Message:  fmt.Sprintf("Query %q generates %d representations", q.Name, len(q.Reprs)),
		})
	}
	return nil
}

func (d *Doctor) checkDatabase(ctx context.Context, report *Report) error {
	if d.db == nil {
		report.AddCheck(CheckResult{
			Category: "Database",
			Name:     "database_skipped",
			Status:   StatusWarn,
			Message:  "No database configured, snapshot drift not checked",
			FixHint:  "Set database.url or DATABASE_URL to compare the snapshot with the live schema",
		})
		return nil
	}

	live, err := introspect.Database(ctx, d.db, d.introOpts...)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		report.AddCheck(CheckResult{
			Category: "Database",
			Name:     "database_metadata",
			Status:   StatusFail,
			Message:  "Cannot read metadata from the database",
			Details:  err.Error(),
			FixHint:  "Check the connection settings and catalog permissions",
		})
		return nil
	}
	report.AddCheck(CheckResult{
		Category: "Database",
		Name:     "database_metadata",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Database %s %s: %d tables", live.DBMSName, live.DBMSVersion, len(live.Tables)),
	})

	if d.snapshot != nil {
		d.checkDrift(live, report)
	}
	return d.checkStatements(ctx, report)
}

func (d *Doctor) checkDrift(live *dbmd.Schema, report *Report) {
	drift := Diff(d.snapshot, live)
	if len(drift) == 0 {
		report.AddCheck(CheckResult{
			Category: "Database",
			Name:     "snapshot_drift",
			Status:   StatusPass,
			Message:  "Snapshot matches the database",
		})
		return
	}
	report.AddCheck(CheckResult{
		Category: "Database",
		Name:     "snapshot_drift",
		Status:   StatusWarn,
		Message:  fmt.Sprintf("Snapshot differs from the database in %d places", len(drift)),
		Details:  strings.Join(drift, "\n"),
		FixHint:  "Run 'sqljson introspect' to refresh the snapshot",
	})
}

// checkStatements explains the generated statements. It needs a database
// handle that can execute statements, which *sql.DB can.
func (d *Doctor) checkStatements(ctx context.Context, report *Report) error {
	db, ok := d.db.(dbcheck.Execer)
	if !ok || d.generated == nil {
		return nil
	}

	failures, err := dbcheck.New(db, d.checkOpts...).Check(ctx, d.generated)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		report.AddCheck(CheckResult{
			Category: "Database",
			Name:     "database_statements",
			Status:   StatusFail,
			Message:  "Cannot check generated statements",
			Details:  err.Error(),
		})
		return nil
	}
	if len(failures) == 0 {
		report.AddCheck(CheckResult{
			Category: "Database",
			Name:     "database_statements",
			Status:   StatusPass,
			Message:  "Database accepts every generated statement",
		})
		return nil
	}

	lines := make([]string, len(failures))
	for i, f := range failures {
		lines[i] = f.Error()
	}
	report.AddCheck(CheckResult{
		Category: "Database",
		Name:     "database_statements",
		Status:   StatusFail,
		Message:  fmt.Sprintf("Database rejects %d generated statements", len(failures)),
		Details:  strings.Join(lines, "\n"),
		FixHint:  "Check the SQL fragments of the listed queries against the live schema",
	})
	return nil
}
