// Package plan checks a query definition against database metadata and
// produces the resolved tree that SQL assembly and result typing work from.
//
// Building a plan resolves every relation to a join, looks up every column,
// derives output names, and propagates nullability from the root down. All
// failures are reported as the typed errors of package sqljson and are
// found before any SQL is produced.
package plan

import (
	"slices"
	"strconv"

	"github.com/pthm/sqljson"
	"github.com/pthm/sqljson/pkg/dbmd"
	"github.com/pthm/sqljson/pkg/query"
)

// Query is a query definition resolved against the metadata.
type Query struct {
	Name   string
	Def    *query.Query
	Schema *dbmd.Schema
	// Unqualified lists schemas whose tables are written without a schema.
	Unqualified []string
	Root        *Node
	// Params lists the parameter names of all record conditions in the
	// order they first occur.
	Params []string
}

// Node is one table level of the output.
type Node struct {
	Def      *query.TableJSON
	Table    *dbmd.Table
	Location sqljson.Location
	// Fields are the table's own fields in declaration order.
	Fields    []Field
	Relations []*Relation
	Condition *query.RecordCondition
	// Optional is true when rows of this level may be missing for an
	// existing row of the level above, or when any ancestor level is.
	Optional bool
}

// Relation links a node to a nested node.
type Relation struct {
	Kind query.NestKind
	// Name is the output field for Object and Array relations.
	Name string
	Node *Node
	Join JoinCondition
	// Outer is true for parent relations that may find no parent row.
	Outer bool
	// Nullable is the nullability of the Object or Array field itself.
	Nullable bool
	Filter   string
	OrderBy  string
	Unwrap   bool
	// Hidden names the columns exported by an inline parent's subquery for
	// joining, parallel to Join.Pairs.
	Hidden []string
}

// Output is one field of the object a node produces, including fields
// merged in from inline parents.
type Output struct {
	Name     string
	Nullable bool
	// Exactly one of Field and Relation is set.
	Field    *Field
	Relation *Relation
	// Owner is the node that declares the field or relation.
	Owner *Node
}

// Outputs lists the node's object fields: its own fields, then fields of
// inline parents, then referenced parents and child collections.
func (n *Node) Outputs() []Output {
	var out []Output
	for i := range n.Fields {
		f := &n.Fields[i]
		out = append(out, Output{Name: f.Name, Nullable: f.Nullable, Field: f, Owner: n})
	}
	for _, r := range n.Relations {
		if r.Kind == query.Flatten {
			out = append(out, r.Node.Outputs()...)
		}
	}
	for _, r := range n.Relations {
		if r.Kind != query.Flatten {
			out = append(out, Output{Name: r.Name, Nullable: r.Nullable, Relation: r, Owner: n})
		}
	}
	return out
}

// Build resolves query q of group g against s.
func Build(s *dbmd.Schema, g *query.Group, q *query.Query) (*Query, error) {
	loc := sqljson.Location{Query: q.Name}

	if err := q.Validate(); err != nil {
		return nil, &sqljson.QueryError{Location: loc, Cause: err}
	}
	if q.ForUpdate {
		for _, r := range q.ResultReprs() {
			if r != query.MultiColumnRows {
				return nil, sqljson.NewQueryError(loc, "forUpdate requires MULTI_COLUMN_ROWS as the only result representation, got %s", r)
			}
		}
	}

	b := &builder{schema: s, naming: q.Naming(g)}
	if g != nil {
		b.defaultSchema = g.DefaultSchema
	}

	tbl, ok := s.LookupTable(q.Table.Table, b.defaultSchema)
	if !ok {
		return nil, sqljson.NewUnknownTableError(loc, q.Table.Table)
	}
	root, err := b.node(&q.Table, tbl, loc, false)
	if err != nil {
		return nil, err
	}

	p := &Query{
		Name:   q.Name,
		Def:    q,
		Schema: s,
		Root:   root,
		Params: b.params,
	}
	if g != nil {
		p.Unqualified = g.UnqualifiedSchemas
	}
	return p, nil
}

type builder struct {
	schema        *dbmd.Schema
	defaultSchema string
	naming        query.FieldNaming
	params        []string
}

func (b *builder) node(def *query.TableJSON, tbl *dbmd.Table, loc sqljson.Location, optional bool) (*Node, error) {
	n := &Node{
		Def:       def,
		Table:     tbl,
		Location:  loc,
		Condition: def.RecordCondition,
		Optional:  optional,
	}

	for i := range def.Fields {
		f, err := b.field(tbl, &def.Fields[i], loc, optional)
		if err != nil {
			return nil, err
		}
		n.Fields = append(n.Fields, f)
	}

	if c := def.RecordCondition; c != nil {
		if c.SQL == "" {
			return nil, sqljson.NewQueryError(loc, "record condition for table '%s' has no sql", def.Table)
		}
		for _, p := range c.ParamNames {
			if !slices.Contains(b.params, p) {
				b.params = append(b.params, p)
			}
		}
	}

	for _, nested := range def.Nested() {
		r, err := b.relation(n, nested, loc.At(nested.Describe()))
		if err != nil {
			return nil, err
		}
		n.Relations = append(n.Relations, r)
	}

	if err := checkConflicts(n, nil); err != nil {
		return nil, err
	}

	return n, nil
}

func (b *builder) relation(owner *Node, nested query.Nested, loc sqljson.Location) (*Relation, error) {
	if nested.Kind != query.Flatten && nested.Name == "" {
		return nil, sqljson.NewQueryError(loc, "%s needs an output field name", nested.Kind)
	}

	tbl, ok := b.schema.LookupTable(nested.Table.Table, b.defaultSchema)
	if !ok {
		return nil, sqljson.NewUnknownTableError(loc, nested.Table.Table)
	}

	child, parent := owner.Table, tbl
	if !nested.IsParent() {
		child, parent = tbl, owner.Table
	}
	join, err := Resolve(b.schema, child, parent, &nested, loc)
	if err != nil {
		return nil, err
	}

	r := &Relation{
		Kind:    nested.Kind,
		Name:    nested.Name,
		Join:    join,
		Filter:  nested.Filter,
		OrderBy: nested.OrderBy,
		Unwrap:  nested.Unwrap,
	}

	nodeOptional := owner.Optional
	if nested.IsParent() {
		r.Outer = parentMayBeMissing(owner.Table, &nested, join)
		nodeOptional = nodeOptional || r.Outer
	}
	r.Nullable = nodeOptional
	if nested.Kind == query.Array {
		r.Nullable = owner.Optional
	}

	r.Node, err = b.node(nested.Table, tbl, loc, nodeOptional)
	if err != nil {
		return nil, err
	}

	if nested.Kind == query.Flatten {
		r.Hidden = hiddenColumns(join)
		if err := checkConflicts(r.Node, r.Hidden); err != nil {
			return nil, err
		}
	}

	if r.Unwrap {
		if outs := r.Node.Outputs(); len(outs) != 1 {
			return nil, &sqljson.UnwrapError{Location: loc, Collection: r.Name, FieldCount: len(outs)}
		}
	}
	return r, nil
}

// parentMayBeMissing decides whether a parent relation needs an outer join.
// A parent row is guaranteed only for a foreign key whose child columns are
// all non-nullable, with no condition restricting the parent rows and no
// explicit optional marker.
func parentMayBeMissing(child *dbmd.Table, nested *query.Nested, join JoinCondition) bool {
	if nested.Optional || join.ForeignKey == nil || nested.Table.RecordCondition != nil {
		return true
	}
	for _, p := range join.Pairs {
		col, ok := child.Column(p.Child.Column)
		if !ok || col.Nullable {
			return true
		}
	}
	return false
}

func hiddenColumns(join JoinCondition) []string {
	hidden := make([]string, len(join.Pairs))
	for i, p := range join.Pairs {
		if p.Parent.Column != "" {
			hidden[i] = "_" + p.Parent.Column
		} else {
			hidden[i] = "_join" + strconv.Itoa(i+1)
		}
	}
	return hidden
}

func checkConflicts(n *Node, reserved []string) error {
	seen := make(map[string]bool)
	for _, name := range reserved {
		seen[name] = true
	}
	for _, o := range n.Outputs() {
		if seen[o.Name] {
			return &sqljson.FieldConflictError{Location: n.Location, Table: n.Def.Table, Field: o.Name}
		}
		seen[o.Name] = true
	}
	return nil
}
