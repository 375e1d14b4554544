// Package generator runs SQL and result type generation over a query group.
//
// Each query is handled independently: it is planned against the database
// metadata, assembled once per requested result representation and, when
// enabled, turned into a result type tree. A query that fails reports its
// error in its own QueryResult and produces no SQL, while the remaining
// queries continue.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pthm/sqljson"
	"github.com/pthm/sqljson/internal/plan"
	"github.com/pthm/sqljson/internal/resulttype"
	"github.com/pthm/sqljson/internal/sqlgen"
	"github.com/pthm/sqljson/pkg/dbmd"
	"github.com/pthm/sqljson/pkg/query"
)

// QueryResult is the outcome of generating one query.
type QueryResult struct {
	Name string
	// Reprs lists the generated representations in the requested order.
	Reprs []query.ResultRepr
	SQL   map[query.ResultRepr]string
	// Types is nil when result types are disabled for the query.
	Types *resulttype.Tree
	// GenerateSource reports whether renderers should emit declarations.
	GenerateSource  bool
	TypesFileHeader string
	// Params lists the record condition parameters in first-use order.
	Params []string
	Err    error
}

// Result holds the outcome of every query of a group, in group order.
type Result struct {
	Dialect string
	Queries []*QueryResult
}

// Err joins the errors of all failed queries, or returns nil.
func (r *Result) Err() error {
	var errs []error
	for _, q := range r.Queries {
		if q.Err != nil {
			errs = append(errs, q.Err)
		}
	}
	return errors.Join(errs...)
}

// Failed returns the results of queries that could not be generated.
func (r *Result) Failed() []*QueryResult {
	var failed []*QueryResult
	for _, q := range r.Queries {
		if q.Err != nil {
			failed = append(failed, q)
		}
	}
	return failed
}

// Query returns the result for the named query.
func (r *Result) Query(name string) (*QueryResult, bool) {
	for _, q := range r.Queries {
		if q.Name == name {
			return q, true
		}
	}
	return nil, false
}

type options struct {
	workers int
	logger  *slog.Logger
	dialect string
	only    map[string]bool
}

// Option configures Generate.
type Option func(*options)

// WithWorkers bounds the number of queries generated concurrently.
// Values below one are ignored.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger sets the logger for progress and per-query failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDialect selects the SQL dialect by name instead of deriving it from
// the metadata's DBMS name.
func WithDialect(name string) Option {
	return func(o *options) { o.dialect = name }
}

// WithQueries restricts generation to the named queries.
func WithQueries(names ...string) Option {
	return func(o *options) {
		if len(names) == 0 {
			return
		}
		o.only = make(map[string]bool, len(names))
		for _, n := range names {
			o.only[n] = true
		}
	}
}

// Generate generates every query of g against s.
//
// The returned error is reserved for problems affecting the whole group:
// an invalid group, an unsupported dialect, an unknown query selected with
// WithQueries or a cancelled context. Per-query failures are reported in
// the result; use Result.Err to collect them.
func Generate(ctx context.Context, s *dbmd.Schema, g *query.Group, opts ...Option) (*Result, error) {
	o := options{workers: runtime.GOMAXPROCS(0), logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", sqljson.ErrInvalidQuery, err)
	}

	var (
		d   sqlgen.Dialect
		err error
	)
	if o.dialect != "" {
		d, err = sqlgen.DialectByName(o.dialect)
	} else {
		d, err = sqlgen.DialectFor(s)
	}
	if err != nil {
		return nil, err
	}

	var selected []*query.Query
	for name := range o.only {
		if _, ok := g.Query(name); !ok {
			return nil, fmt.Errorf("%w: no query named %q", sqljson.ErrInvalidQuery, name)
		}
	}
	for i := range g.Queries {
		if o.only == nil || o.only[g.Queries[i].Name] {
			selected = append(selected, &g.Queries[i])
		}
	}

	res := &Result{Dialect: d.Name(), Queries: make([]*QueryResult, len(selected))}
	start := time.Now()

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(o.workers)
	for i, q := range selected {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res.Queries[i] = generateQuery(s, g, q, d, o.logger)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	o.logger.Info("generated queries",
		"queries", len(selected),
		"failed", len(res.Failed()),
		"dialect", d.Name(),
		"duration", time.Since(start))
	return res, nil
}

func generateQuery(s *dbmd.Schema, g *query.Group, q *query.Query, d sqlgen.Dialect, logger *slog.Logger) *QueryResult {
	r := &QueryResult{
		Name:            q.Name,
		TypesFileHeader: q.TypesFileHeader,
	}
	logger.Debug("generating query", "query", q.Name)

	p, err := plan.Build(s, g, q)
	if err != nil {
		return failed(r, err, logger)
	}

	sqls := make(map[query.ResultRepr]string, len(q.ResultReprs()))
	for _, repr := range q.ResultReprs() {
		sql, err := sqlgen.Assemble(p, repr, d)
		if err != nil {
			return failed(r, err, logger)
		}
		sqls[repr] = sql
	}

	r.Reprs = q.ResultReprs()
	r.SQL = sqls
	r.Params = p.Params
	if q.ShouldGenerateResultTypes() {
		r.Types = resulttype.Build(p)
		r.GenerateSource = q.ShouldGenerateSource()
	}
	logger.Debug("generated query", "query", q.Name, "reprs", len(sqls))
	return r
}

func failed(r *QueryResult, err error, logger *slog.Logger) *QueryResult {
	logger.Warn("query generation failed", "query", r.Name, "error", err)
	r.Err = err
	return r
}
