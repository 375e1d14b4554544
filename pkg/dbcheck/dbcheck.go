// Package dbcheck runs generated statements against a live database to
// catch what a metadata snapshot cannot: SQL fragments in record
// conditions, filters, custom joins and expression fields are only checked
// by the database itself.
//
// Every statement is explained, never executed, inside its own transaction
// which is always rolled back:
//
//	res, _ := compiler.Generate(ctx, snapshot, group)
//	failures, err := dbcheck.New(db).Check(ctx, res)
//
// Record condition parameters are bound as NULL, which every parameter
// position accepts.
package dbcheck

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/pthm/sqljson/internal/generator"
	"github.com/pthm/sqljson/pkg/query"
)

// Execer is the minimal interface needed for explaining statements.
// Implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Failure is a statement the database rejected.
type Failure struct {
	Query string
	Repr  query.ResultRepr
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("query %q (%s): %v", f.Query, f.Repr, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Checker explains generated statements.
type Checker struct {
	db     Execer
	dryRun io.Writer
	logger *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithDryRun writes the statements that would be explained to w instead of
// sending them to the database.
func WithDryRun(w io.Writer) Option {
	return func(c *Checker) { c.dryRun = w }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Checker. The Execer is typically *sql.DB; a *sql.Tx or
// *sql.Conn is used as is, without a transaction per statement.
func New(db Execer, opts ...Option) *Checker {
	c := &Checker{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check explains every statement of the queries in res that generated.
// Statements the database rejects are returned as failures; the error is
// reserved for cancellation and transaction handling.
func (c *Checker) Check(ctx context.Context, res *generator.Result) ([]Failure, error) {
	var (
		failures []Failure
		checked  int
	)
	start := time.Now()

	for _, q := range res.Queries {
		if q.Err != nil {
			continue
		}
		for _, repr := range q.Reprs {
			stmt := ExplainStatement(res.Dialect, q.SQL[repr], q.Params)
			if c.dryRun != nil {
				fmt.Fprintf(c.dryRun, "-- %s (%s)\n%s;\n\n", q.Name, repr, stmt)
				continue
			}

			rejected, err := c.explain(ctx, stmt)
			if err != nil {
				return nil, err
			}
			checked++
			if rejected != nil {
				c.logger.Warn("statement rejected by database", "query", q.Name, "repr", repr, "error", rejected)
				failures = append(failures, Failure{Query: q.Name, Repr: repr, Err: rejected})
				continue
			}
			c.logger.Debug("statement accepted", "query", q.Name, "repr", repr)
		}
	}

	if c.dryRun == nil {
		c.logger.Info("checked statements against database",
			"statements", checked,
			"failed", len(failures),
			"duration", time.Since(start))
	}
	return failures, nil
}

// explain returns the database's rejection of stmt, if any. The error is
// for cancellation and transaction failures.
func (c *Checker) explain(ctx context.Context, stmt string) (rejected, err error) {
	txer, ok := c.db.(txBeginner)
	if !ok {
		_, rejected = c.db.ExecContext(ctx, stmt)
		return rejected, ctx.Err()
	}

	tx, err := txer.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, rejected = tx.ExecContext(ctx, stmt)
	return rejected, ctx.Err()
}

// ExplainStatement returns the statement that explains stmt in the named
// dialect, with the named parameters bound as NULL.
func ExplainStatement(dialect, stmt string, params []string) string {
	for _, p := range params {
		stmt = paramPattern(p).ReplaceAllString(stmt, "${1}NULL")
	}
	if strings.Contains(strings.ToLower(dialect), "oracle") {
		return "EXPLAIN PLAN FOR " + stmt
	}
	return "EXPLAIN " + stmt
}

// paramPattern matches :name but not a ::name cast or a longer identifier.
func paramPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(^|[^:\w]):` + regexp.QuoteMeta(name) + `\b`)
}
