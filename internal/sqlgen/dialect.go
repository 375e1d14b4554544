package sqlgen

import (
	"fmt"
	"strings"

	"github.com/pthm/sqljson"
	"github.com/pthm/sqljson/internal/sqlgen/sqldsl"
	"github.com/pthm/sqljson/pkg/dbmd"
)

// Dialect renders the JSON construction and aggregation functions of one
// database system.
type Dialect interface {
	// Name identifies the dialect in configuration and logs.
	Name() string
	// RowObject builds a JSON object from columns of the relation aliased
	// as alias.
	RowObject(alias string, cols []Column) sqldsl.Expr
	// Value references a single column as a JSON array element.
	Value(alias string, col Column) sqldsl.Expr
	// Aggregate collects value over all rows into a JSON array ordered by
	// orderBy, yielding an empty array when there are no rows.
	Aggregate(value sqldsl.Expr, orderBy string) sqldsl.Expr
	// JSONContains tests that the JSON document doc contains value.
	JSONContains(doc, value sqldsl.Expr) (sqldsl.Expr, error)
}

// Postgres renders jsonb functions.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (d Postgres) RowObject(alias string, cols []Column) sqldsl.Expr {
	fields := make([]sqldsl.JSONField, len(cols))
	for i, c := range cols {
		fields[i] = sqldsl.JSONField{Key: c.Key, Value: d.Value(alias, c)}
	}
	return sqldsl.JSONBBuildObject{Fields: fields}
}

func (Postgres) Value(alias string, col Column) sqldsl.Expr {
	return sqldsl.Col{Table: alias, Column: col.Ident}
}

func (Postgres) Aggregate(value sqldsl.Expr, orderBy string) sqldsl.Expr {
	return sqldsl.Coalesce(
		sqldsl.Agg{Name: "jsonb_agg", Arg: value, OrderBy: orderBy},
		sqldsl.Cast{Expr: sqldsl.Lit("[]"), Type: "jsonb"},
	)
}

func (Postgres) JSONContains(doc, value sqldsl.Expr) (sqldsl.Expr, error) {
	return sqldsl.Cmp{Left: doc, Op: "@>", Right: value}, nil
}

// Oracle renders SQL/JSON functions returning clob. Nested documents are
// marked with treat(... AS json) so they are embedded rather than quoted.
type Oracle struct{}

func (Oracle) Name() string { return "oracle" }

func (d Oracle) RowObject(alias string, cols []Column) sqldsl.Expr {
	fields := make([]sqldsl.JSONField, len(cols))
	for i, c := range cols {
		fields[i] = sqldsl.JSONField{Key: c.Key, Value: d.Value(alias, c)}
	}
	return sqldsl.JSONObject{Fields: fields, Returning: "clob"}
}

func (Oracle) Value(alias string, col Column) sqldsl.Expr {
	var v sqldsl.Expr = sqldsl.Col{Table: alias, Column: col.Ident}
	if col.JSON {
		v = sqldsl.Treat{Expr: v, Type: "json"}
	}
	return v
}

func (Oracle) Aggregate(value sqldsl.Expr, orderBy string) sqldsl.Expr {
	return sqldsl.Coalesce(
		sqldsl.Agg{Name: "json_arrayagg", Arg: value, OrderBy: orderBy, Returning: "clob"},
		sqldsl.Func{Name: "to_clob", Args: []sqldsl.Expr{sqldsl.Lit("[]")}},
	)
}

func (Oracle) JSONContains(sqldsl.Expr, sqldsl.Expr) (sqldsl.Expr, error) {
	return nil, fmt.Errorf("%w: oracle has no JSON containment operator", sqljson.ErrUnsupportedDialect)
}

// DialectByName returns the dialect whose name is contained in name, case
// insensitively, so both "postgres" and "PostgreSQL" select Postgres.
func DialectByName(name string) (Dialect, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "postgres"):
		return Postgres{}, nil
	case strings.Contains(lower, "oracle"):
		return Oracle{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", sqljson.ErrUnsupportedDialect, name)
	}
}

// DialectFor selects the dialect from the metadata's DBMS name. Metadata
// without a DBMS name is treated as PostgreSQL.
func DialectFor(s *dbmd.Schema) (Dialect, error) {
	if s.DBMSName == "" {
		return Postgres{}, nil
	}
	return DialectByName(s.DBMSName)
}
