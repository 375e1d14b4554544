// Package query defines the query definition tree: a group of named queries,
// each rooted at one table with nested parent and child tables.
//
// Definitions are built either in Go with the constructor functions in
// builder.go or loaded from YAML/JSON documents with LoadGroup. Both produce
// the same values, and optional settings are resolved through accessor
// methods so defaults are identical regardless of how a tree was authored.
package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResultRepr is a physical shape of a query's result.
type ResultRepr string

const (
	// MultiColumnRows returns one SQL column per top-level field.
	MultiColumnRows ResultRepr = "MULTI_COLUMN_ROWS"
	// JSONObjectRows returns one JSON object column per row.
	JSONObjectRows ResultRepr = "JSON_OBJECT_ROWS"
	// JSONArrayRow returns a single row holding a JSON array of all objects.
	JSONArrayRow ResultRepr = "JSON_ARRAY_ROW"
)

// ResultReprs lists every representation in a stable order.
var ResultReprs = []ResultRepr{MultiColumnRows, JSONObjectRows, JSONArrayRow}

// ParseResultRepr accepts a representation name in any case, with dashes or
// underscores.
func ParseResultRepr(s string) (ResultRepr, error) {
	norm := ResultRepr(strings.ToUpper(strings.ReplaceAll(s, "-", "_")))
	for _, r := range ResultReprs {
		if r == norm {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown result representation %q", s)
}

// UnmarshalJSON stores known names in their canonical form. Unknown names
// are kept as written and reported when the query is validated.
func (r *ResultRepr) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ResultRepr(s).canonical()
	return nil
}

func (r ResultRepr) canonical() ResultRepr {
	if c, err := ParseResultRepr(string(r)); err == nil {
		return c
	}
	return r
}

// FieldNaming controls how output names are derived from column names when
// a field does not give one explicitly.
type FieldNaming string

const (
	// CamelCase turns "mesh_id" into "meshId".
	CamelCase FieldNaming = "CAMELCASE"
	// AsInDB uses the column name unchanged.
	AsInDB FieldNaming = "AS_IN_DB"
)

// ParseFieldNaming accepts a naming name in any case, with dashes or
// underscores.
func ParseFieldNaming(s string) (FieldNaming, error) {
	switch n := FieldNaming(strings.ToUpper(strings.ReplaceAll(s, "-", "_"))); n {
	case CamelCase, AsInDB:
		return n, nil
	}
	return "", fmt.Errorf("unknown output field naming %q", s)
}

// UnmarshalJSON stores known names in their canonical form.
func (n *FieldNaming) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*n = FieldNaming(s).canonical()
	return nil
}

func (n FieldNaming) canonical() FieldNaming {
	if c, err := ParseFieldNaming(string(n)); err == nil {
		return c
	}
	return n
}

func (n FieldNaming) validate() error {
	if n == "" {
		return nil
	}
	_, err := ParseFieldNaming(string(n))
	return err
}

// Group is a set of queries sharing naming defaults.
type Group struct {
	// DefaultSchema qualifies table names written without a schema.
	DefaultSchema string `json:"defaultSchema,omitempty"`
	// FieldNaming is the default output naming for every query.
	FieldNaming FieldNaming `json:"outputFieldNameDefault,omitempty"`
	// UnqualifiedSchemas lists schemas whose tables are referenced without
	// a schema prefix in generated SQL.
	UnqualifiedSchemas []string `json:"generateUnqualifiedNamesForSchemas,omitempty"`
	Queries            []Query  `json:"querySpecs"`
}

// Query is one named query.
type Query struct {
	Name string `json:"queryName"`
	// Reprs lists the result representations to generate; empty means
	// JSON_OBJECT_ROWS only.
	Reprs []ResultRepr `json:"resultRepresentations,omitempty"`
	// GenerateResultTypes defaults to true.
	GenerateResultTypes *bool `json:"generateResultTypes,omitempty"`
	// GenerateSource controls whether type declarations are rendered for the
	// result types. Defaults to true.
	GenerateSource *bool       `json:"generateSource,omitempty"`
	FieldNaming    FieldNaming `json:"outputFieldNameDefault,omitempty"`
	// ForUpdate locks the selected rows. Only valid with MULTI_COLUMN_ROWS.
	ForUpdate bool `json:"forUpdate,omitempty"`
	// OrderBy orders the top-level rows. "$$" stands for the table alias.
	OrderBy string `json:"orderBy,omitempty"`
	// TypesFileHeader is copied to the top of rendered type declarations.
	TypesFileHeader string    `json:"typesFileHeader,omitempty"`
	Table           TableJSON `json:"tableJson"`
}

// ResultReprs returns the requested representations in canonical form with
// the default applied.
func (q *Query) ResultReprs() []ResultRepr {
	if len(q.Reprs) == 0 {
		return []ResultRepr{JSONObjectRows}
	}
	reprs := make([]ResultRepr, len(q.Reprs))
	for i, r := range q.Reprs {
		reprs[i] = r.canonical()
	}
	return reprs
}

// ShouldGenerateResultTypes reports whether a result type tree is wanted.
func (q *Query) ShouldGenerateResultTypes() bool {
	return q.GenerateResultTypes == nil || *q.GenerateResultTypes
}

// ShouldGenerateSource reports whether type declarations should be rendered.
// Source is never rendered without result types.
func (q *Query) ShouldGenerateSource() bool {
	return q.ShouldGenerateResultTypes() && (q.GenerateSource == nil || *q.GenerateSource)
}

// Naming returns the effective field naming for the query within g.
func (q *Query) Naming(g *Group) FieldNaming {
	switch {
	case q.FieldNaming != "":
		return q.FieldNaming.canonical()
	case g != nil && g.FieldNaming != "":
		return g.FieldNaming.canonical()
	default:
		return CamelCase
	}
}

// Query returns the query with the given name.
func (g *Group) Query(name string) (*Query, bool) {
	for i := range g.Queries {
		if g.Queries[i].Name == name {
			return &g.Queries[i], true
		}
	}
	return nil, false
}

// Validate checks what applies to the group as a whole: the default field
// naming is known and query names are present and unique. Settings of a
// single query are checked by Query.Validate so that one bad query does not
// hide the others.
func (g *Group) Validate() error {
	if err := g.FieldNaming.validate(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(g.Queries))
	for i := range g.Queries {
		q := &g.Queries[i]
		if q.Name == "" {
			return fmt.Errorf("query %d has no name", i+1)
		}
		if seen[q.Name] {
			return fmt.Errorf("duplicate query name %q", q.Name)
		}
		seen[q.Name] = true
	}
	return nil
}

// Validate checks the query's own settings: its field naming and result
// representations are known.
func (q *Query) Validate() error {
	if err := q.FieldNaming.validate(); err != nil {
		return err
	}
	for _, r := range q.Reprs {
		if _, err := ParseResultRepr(string(r)); err != nil {
			return err
		}
	}
	return nil
}
