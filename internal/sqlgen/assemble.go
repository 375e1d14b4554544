package sqlgen

import (
	"fmt"
	"strings"

	"github.com/pthm/sqljson"
	"github.com/pthm/sqljson/internal/plan"
	"github.com/pthm/sqljson/internal/sqlgen/sqldsl"
	"github.com/pthm/sqljson/pkg/query"
)

// Column is one output column of a generated base query.
type Column struct {
	// Key is the JSON property name.
	Key string
	// Ident is the column name as written in SQL, quoted when needed.
	Ident string
	// JSON marks values that are JSON documents themselves.
	JSON bool
}

// baseQuery selects one row per record of a node's table with one column
// per output field.
type baseQuery struct {
	stmt  sqldsl.SelectStmt
	alias string
	cols  []Column
}

// correlation returns extra WHERE conditions for a base query given the
// alias its table received.
type correlation func(alias string) []sqldsl.Expr

type assembler struct {
	q       *plan.Query
	dialect Dialect
	aliases *aliases
}

// Assemble renders the SQL statement producing q's results in
// representation repr.
func Assemble(q *plan.Query, repr query.ResultRepr, d Dialect) (string, error) {
	a := &assembler{q: q, dialect: d, aliases: newAliases()}
	root := q.Root
	orderBy := q.Def.OrderBy

	switch repr {
	case query.MultiColumnRows:
		b := a.base(root, nil, nil)
		if orderBy != "" {
			b.stmt.OrderBy = []string{substitute(orderBy, query.AliasVar, b.alias)}
		}
		b.stmt.ForUpdate = q.Def.ForUpdate
		return b.stmt.SQL(), nil

	case query.JSONObjectRows:
		w := a.aliases.next("q")
		b := a.base(root, nil, nil)
		stmt := sqldsl.SelectStmt{
			ColumnExprs: []sqldsl.Expr{sqldsl.Commented{
				Comments: []string{fmt.Sprintf("row object builder for table '%s'", root.Def.Table)},
				Expr:     sqldsl.SelectAs(d.RowObject(w, b.cols), "json"),
			}},
			FromExpr: sqldsl.SubqueryTable{Query: b.stmt, Alias: w},
		}
		if orderBy != "" {
			stmt.OrderBy = []string{substitute(orderBy, query.AliasVar, w)}
		}
		return stmt.SQL(), nil

	case query.JSONArrayRow:
		w := a.aliases.next("q")
		b := a.base(root, nil, nil)
		agg := d.Aggregate(d.RowObject(w, b.cols), substitute(orderBy, query.AliasVar, w))
		stmt := sqldsl.SelectStmt{
			ColumnExprs: []sqldsl.Expr{sqldsl.Commented{
				Comments: []string{fmt.Sprintf("aggregated row objects builder for table '%s'", root.Def.Table)},
				Expr:     sqldsl.SelectAs(agg, "json"),
			}},
			FromExpr: sqldsl.SubqueryTable{Query: b.stmt, Alias: w},
		}
		return stmt.SQL(), nil

	default:
		return "", sqljson.NewQueryError(sqljson.Location{Query: q.Name}, "unknown result representation %q", repr)
	}
}

// base lowers node n. When export is set, n is the parent side of that
// inline relation and the join operands are selected first under the
// relation's hidden column names.
func (a *assembler) base(n *plan.Node, corr correlation, export *plan.Relation) baseQuery {
	alias := a.aliases.forTable(n.Table.ID.Name)
	b := baseQuery{alias: alias}
	stmt := sqldsl.SelectStmt{
		Comments: []string{fmt.Sprintf("base query for table '%s'", n.Def.Table)},
		FromExpr: sqldsl.TableAs(a.q.Schema.QualifiedName(n.Table.ID, a.q.Unqualified), alias),
	}

	if export != nil {
		for i, p := range export.Join.Pairs {
			stmt.ColumnExprs = append(stmt.ColumnExprs,
				sqldsl.SelectAs(a.operand(p.Parent, alias), a.ident(export.Hidden[i])))
		}
	}

	for i := range n.Fields {
		f := &n.Fields[i]
		col := Column{Key: f.Name, Ident: a.ident(f.Name)}
		stmt.ColumnExprs = append(stmt.ColumnExprs, sqldsl.SelectAs(a.fieldValue(f, alias), col.Ident))
		b.cols = append(b.cols, col)
	}

	for _, r := range n.Relations {
		if r.Kind == query.Flatten {
			a.inlineParent(&stmt, &b, r, alias)
		}
	}
	for _, r := range n.Relations {
		switch r.Kind {
		case query.Object:
			a.referencedParent(&stmt, &b, r, alias)
		case query.Array:
			a.childCollection(&stmt, &b, r, alias)
		}
	}

	var where []sqldsl.Expr
	if corr != nil {
		where = append(where, corr(alias)...)
	}
	if c := n.Condition; c != nil {
		where = append(where, sqldsl.Paren{Expr: sqldsl.Raw(substitute(c.SQL, c.Placeholder(), alias))})
	}
	stmt.Where = sqldsl.And(where...)

	b.stmt = stmt
	return b
}

func (a *assembler) inlineParent(stmt *sqldsl.SelectStmt, b *baseQuery, r *plan.Relation, alias string) {
	w := a.aliases.next("q")
	sub := a.base(r.Node, nil, r)

	on := make([]sqldsl.Expr, len(r.Join.Pairs))
	for i, p := range r.Join.Pairs {
		on[i] = sqldsl.Eq{
			Left:  a.operand(p.Child, alias),
			Right: sqldsl.Col{Table: w, Column: a.ident(r.Hidden[i])},
		}
	}
	joinType := "INNER"
	if r.Outer {
		joinType = "LEFT"
	}
	stmt.Joins = append(stmt.Joins, sqldsl.JoinClause{
		Comments:  []string{fmt.Sprintf("parent table '%s', joined for inlined fields", r.Node.Def.Table)},
		Type:      joinType,
		TableExpr: sqldsl.SubqueryTable{Query: sub.stmt, Alias: w},
		On:        sqldsl.And(on...),
	})

	for i, c := range sub.cols {
		var e sqldsl.Expr = sqldsl.SelectAs(sqldsl.Col{Table: w, Column: c.Ident}, c.Ident)
		if i == 0 {
			e = sqldsl.Commented{
				Comments: []string{fmt.Sprintf("field(s) inlined from parent table '%s'", r.Node.Def.Table)},
				Expr:     e,
			}
		}
		stmt.ColumnExprs = append(stmt.ColumnExprs, e)
		b.cols = append(b.cols, c)
	}
}

func (a *assembler) referencedParent(stmt *sqldsl.SelectStmt, b *baseQuery, r *plan.Relation, alias string) {
	w := a.aliases.next("q")
	sub := a.base(r.Node, func(parentAlias string) []sqldsl.Expr {
		conds := make([]sqldsl.Expr, len(r.Join.Pairs))
		for i, p := range r.Join.Pairs {
			conds[i] = sqldsl.Eq{Left: a.operand(p.Parent, parentAlias), Right: a.operand(p.Child, alias)}
		}
		return conds
	}, nil)

	obj := sqldsl.SelectStmt{
		ColumnExprs: []sqldsl.Expr{sqldsl.Commented{
			Comments: []string{fmt.Sprintf("row object builder for table '%s'", r.Node.Def.Table)},
			Expr:     a.dialect.RowObject(w, sub.cols),
		}},
		FromExpr: sqldsl.SubqueryTable{Query: sub.stmt, Alias: w},
	}

	col := Column{Key: r.Name, Ident: a.ident(r.Name), JSON: true}
	stmt.ColumnExprs = append(stmt.ColumnExprs, sqldsl.Commented{
		Comments: []string{fmt.Sprintf("parent table '%s' referenced as '%s'", r.Node.Def.Table, r.Name)},
		Expr:     sqldsl.SelectAs(sqldsl.Subquery{Query: obj}, col.Ident),
	})
	b.cols = append(b.cols, col)
}

func (a *assembler) childCollection(stmt *sqldsl.SelectStmt, b *baseQuery, r *plan.Relation, alias string) {
	w := a.aliases.next("q")
	sub := a.base(r.Node, func(childAlias string) []sqldsl.Expr {
		conds := make([]sqldsl.Expr, 0, len(r.Join.Pairs)+1)
		for _, p := range r.Join.Pairs {
			conds = append(conds, sqldsl.Eq{Left: a.operand(p.Child, childAlias), Right: a.operand(p.Parent, alias)})
		}
		if r.Filter != "" {
			conds = append(conds, sqldsl.Paren{Expr: sqldsl.Raw(substitute(r.Filter, query.AliasVar, childAlias))})
		}
		return conds
	}, nil)

	var value sqldsl.Expr
	comment := fmt.Sprintf("aggregated row objects builder for table '%s'", r.Node.Def.Table)
	if r.Unwrap {
		value = a.dialect.Value(w, sub.cols[0])
		comment = fmt.Sprintf("aggregated values of table '%s'", r.Node.Def.Table)
	} else {
		value = a.dialect.RowObject(w, sub.cols)
	}
	agg := sqldsl.SelectStmt{
		ColumnExprs: []sqldsl.Expr{sqldsl.Commented{
			Comments: []string{comment},
			Expr:     a.dialect.Aggregate(value, substitute(r.OrderBy, query.AliasVar, w)),
		}},
		FromExpr: sqldsl.SubqueryTable{Query: sub.stmt, Alias: w},
	}

	col := Column{Key: r.Name, Ident: a.ident(r.Name), JSON: true}
	stmt.ColumnExprs = append(stmt.ColumnExprs, sqldsl.Commented{
		Comments: []string{fmt.Sprintf("records from child table '%s' as collection '%s'", r.Node.Def.Table, r.Name)},
		Expr:     sqldsl.SelectAs(sqldsl.Subquery{Query: agg}, col.Ident),
	})
	b.cols = append(b.cols, col)
}

func (a *assembler) fieldValue(f *plan.Field, alias string) sqldsl.Expr {
	if f.Column != nil {
		return sqldsl.Col{Table: alias, Column: a.ident(f.Column.Name)}
	}
	return sqldsl.Raw(substitute(f.Expression, f.Placeholder, alias))
}

func (a *assembler) operand(op plan.Operand, alias string) sqldsl.Expr {
	if op.Column != "" {
		return sqldsl.Col{Table: alias, Column: a.ident(op.Column)}
	}
	return sqldsl.Raw(substitute(op.Expr, query.AliasVar, alias))
}

func (a *assembler) ident(name string) string {
	return a.q.Schema.QuoteIfNeeded(name)
}

func substitute(sql, placeholder, alias string) string {
	if sql == "" || placeholder == "" {
		return sql
	}
	return strings.ReplaceAll(sql, placeholder, alias)
}
