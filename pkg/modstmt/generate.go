package modstmt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/pthm/sqljson"
	"github.com/pthm/sqljson/internal/plan"
	"github.com/pthm/sqljson/internal/sqlgen"
	"github.com/pthm/sqljson/internal/sqlgen/sqldsl"
	"github.com/pthm/sqljson/pkg/dbmd"
	"github.com/pthm/sqljson/pkg/query"
)

// Statement is the outcome of generating one modification statement.
type Statement struct {
	Name    string
	Command Command
	SQL     string
	Style   ParamStyle
	// TargetParams lists the parameters of the target field values.
	TargetParams []string
	// ConditionParams lists the parameters of the field conditions followed
	// by those of the record condition.
	ConditionParams []string
	GenerateSource  bool
	Err             error
}

// Params returns all parameters in statement order. For numbered
// parameters this is the binding order.
func (s *Statement) Params() []string {
	return append(append([]string(nil), s.TargetParams...), s.ConditionParams...)
}

// Result holds every generated statement in group order.
type Result struct {
	Dialect    string
	Statements []*Statement
}

// Err joins the errors of all failed statements, or returns nil.
func (r *Result) Err() error {
	var errs []error
	for _, s := range r.Statements {
		if s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	return errors.Join(errs...)
}

// Failed returns the statements that could not be generated.
func (r *Result) Failed() []*Statement {
	var failed []*Statement
	for _, s := range r.Statements {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}

// Statement returns the result for the named statement.
func (r *Result) Statement(name string) (*Statement, bool) {
	for _, s := range r.Statements {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

type options struct {
	logger  *slog.Logger
	dialect string
}

// Option configures Generate.
type Option func(*options)

// WithLogger sets the logger for per-statement failures.
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

// Generate generates every statement of g against s. As with queries, the
// returned error covers only the group as a whole; a statement that fails
// reports its error in its own Statement.
func Generate(ctx context.Context, s *dbmd.Schema, g *Group, opts ...Option) (*Result, error) {
	o := options{logger: slog.Default()}
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

	res := &Result{Dialect: d.Name(), Statements: make([]*Statement, 0, len(g.Statements))}
	for i := range g.Statements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		spec := &g.Statements[i]
		st := &Statement{
			Name:           spec.Name,
			Command:        canonical(spec.Command, commands),
			Style:          spec.Style(),
			GenerateSource: spec.ShouldGenerateSource(),
		}
		if err := (&builder{schema: s, group: g, spec: spec, dialect: d, out: st}).build(); err != nil {
			st.Err = err
			o.logger.Warn("statement failed", "statement", spec.Name, "error", err)
		} else {
			o.logger.Debug("generated statement", "statement", spec.Name, "command", st.Command)
		}
		res.Statements = append(res.Statements, st)
	}
	o.logger.Info("generated statements",
		"statements", len(res.Statements),
		"failed", len(res.Failed()),
		"dialect", d.Name())
	return res, nil
}

var simpleNamedParam = regexp.MustCompile(`^:[A-Za-z][A-Za-z0-9_]*$`)

type builder struct {
	schema  *dbmd.Schema
	group   *Group
	spec    *Spec
	dialect sqlgen.Dialect
	out     *Statement

	loc   sqljson.Location
	table *dbmd.Table
}

func (b *builder) build() error {
	b.loc = sqljson.Location{Query: b.spec.Name}
	if err := b.spec.Validate(); err != nil {
		return &sqljson.QueryError{Location: b.loc, Cause: err}
	}
	t, ok := b.schema.LookupTable(b.spec.Table, b.group.DefaultSchema)
	if !ok {
		return sqljson.NewUnknownTableError(b.loc, b.spec.Table)
	}
	b.table = t
	tableSQL := b.schema.QualifiedName(t.ID, b.group.UnqualifiedSchemas)

	var stmt sqldsl.SQLer
	switch b.out.Command {
	case Insert:
		cols, vals, err := b.targets()
		if err != nil {
			return err
		}
		stmt = sqldsl.InsertStmt{Table: tableSQL, Columns: cols, Values: vals}
	case Update:
		cols, vals, err := b.targets()
		if err != nil {
			return err
		}
		where, err := b.where(tableSQL)
		if err != nil {
			return err
		}
		set := make([]sqldsl.Assignment, len(cols))
		for i := range cols {
			set[i] = sqldsl.Assignment{Column: cols[i], Value: vals[i]}
		}
		stmt = sqldsl.UpdateStmt{Table: tableSQL, Alias: b.spec.TableAlias, Set: set, Where: where}
	case Delete:
		where, err := b.where(tableSQL)
		if err != nil {
			return err
		}
		stmt = sqldsl.DeleteStmt{Table: tableSQL, Alias: b.spec.TableAlias, Where: where}
	}
	b.out.SQL = stmt.SQL()
	return nil
}

// column resolves a field name against the target table and returns its
// SQL spelling.
func (b *builder) column(loc sqljson.Location, field string) (string, *dbmd.Column, error) {
	col, ok := b.table.Column(b.schema.NormalizeName(field))
	if !ok {
		return "", nil, sqljson.NewUnknownColumnError(loc, b.table.ID.String(), field)
	}
	return b.schema.QuoteIfNeeded(col.Name), col, nil
}

func (b *builder) targets() ([]string, []sqldsl.Expr, error) {
	loc := b.loc.At("targetFields")
	cols := make([]string, 0, len(b.spec.Fields))
	vals := make([]sqldsl.Expr, 0, len(b.spec.Fields))
	for _, f := range b.spec.Fields {
		name, col, err := b.column(loc, f.Field)
		if err != nil {
			return nil, nil, err
		}
		value := f.Value
		if value == "" {
			value = b.param(paramName(col.Name))
		}
		params, err := b.targetParams(loc, f, col, value)
		if err != nil {
			return nil, nil, err
		}
		b.out.TargetParams = append(b.out.TargetParams, params...)
		cols = append(cols, name)
		vals = append(vals, sqldsl.Raw(value))
	}
	return cols, vals, nil
}

func (b *builder) targetParams(loc sqljson.Location, f TargetField, col *dbmd.Column, value string) ([]string, error) {
	if len(f.ParamNames) > 0 {
		switch b.out.Style {
		case Named:
			for _, p := range f.ParamNames {
				if !strings.Contains(value, ":"+p) {
					return nil, sqljson.NewQueryError(loc,
						"value of field %q does not reference parameter %q", f.Field, p)
				}
			}
		case Numbered:
			if n := strings.Count(value, "?"); n < len(f.ParamNames) {
				return nil, sqljson.NewQueryError(loc,
					"value of field %q has %d parameter markers for %d parameter names", f.Field, n, len(f.ParamNames))
			}
		}
		return f.ParamNames, nil
	}
	switch {
	case b.out.Style == Named && simpleNamedParam.MatchString(value):
		return []string{value[1:]}, nil
	case b.out.Style == Numbered && value == "?":
		return []string{paramName(col.Name)}, nil
	}
	return nil, nil
}

func (b *builder) where(tableSQL string) (sqldsl.Expr, error) {
	loc := b.loc.At("fieldParamConditions")
	var conds []sqldsl.Expr
	for _, c := range b.spec.Conditions {
		name, col, err := b.column(loc, c.Field)
		if err != nil {
			return nil, err
		}
		pname := c.ParamName
		if pname == "" {
			pname = paramName(col.Name) + "Cond"
		}
		field := sqldsl.Col{Table: b.spec.TableAlias, Column: name}
		p := sqldsl.Raw(b.param(pname))

		var cond sqldsl.Expr
		switch canonical(c.Op, operators) {
		case "", OpEq:
			cond = sqldsl.Eq{Left: field, Right: p}
		case OpLt:
			cond = sqldsl.Cmp{Left: field, Op: "<", Right: p}
		case OpLe:
			cond = sqldsl.Cmp{Left: field, Op: "<=", Right: p}
		case OpGt:
			cond = sqldsl.Cmp{Left: field, Op: ">", Right: p}
		case OpGe:
			cond = sqldsl.Cmp{Left: field, Op: ">=", Right: p}
		case OpIn:
			cond = sqldsl.In{Expr: field, List: []sqldsl.Expr{p}}
		case OpEqIfParamNonNull:
			cond = sqldsl.Or(sqldsl.IsNull{Expr: p}, sqldsl.Eq{Left: field, Right: p})
			if b.out.Style == Numbered {
				// The marker appears twice and is bound twice.
				b.out.ConditionParams = append(b.out.ConditionParams, pname)
			}
		case OpJSONContains:
			cond, err = b.dialect.JSONContains(field, p)
			if err != nil {
				return nil, &sqljson.QueryError{Location: loc, Cause: err}
			}
		}
		b.out.ConditionParams = append(b.out.ConditionParams, pname)
		conds = append(conds, cond)
	}
	if rc := b.spec.RecordCondition; rc != nil {
		target := b.spec.TableAlias
		if target == "" {
			target = tableSQL
		}
		conds = append(conds, sqldsl.Paren{Expr: sqldsl.Raw(strings.ReplaceAll(rc.SQL, rc.Placeholder(), target))})
		b.out.ConditionParams = append(b.out.ConditionParams, rc.ParamNames...)
	}
	if len(conds) == 0 {
		return nil, nil
	}
	return sqldsl.And(conds...), nil
}

func (b *builder) param(name string) string {
	if b.out.Style == Numbered {
		return "?"
	}
	return ":" + name
}

// paramName derives a parameter name from a stored column name.
func paramName(column string) string {
	return plan.OutputName(column, query.CamelCase)
}
