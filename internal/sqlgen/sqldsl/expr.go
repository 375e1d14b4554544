package sqldsl

import (
	"strconv"
	"strings"
)

// Expr is the interface that all SQL expression types implement.
type Expr interface {
	SQL() string
}

// Col represents a table column reference (e.g., d.mesh_id).
// Both parts are rendered as given, so quoting is the caller's job.
type Col struct {
	Table  string
	Column string
}

// SQL renders the column reference.
func (c Col) SQL() string {
	if c.Table == "" {
		return c.Column
	}
	return c.Table + "." + c.Column
}

// Lit represents a literal string value (auto-quoted with single quotes).
type Lit string

// SQL renders the literal with single quotes.
func (l Lit) SQL() string {
	escaped := strings.ReplaceAll(string(l), "'", "''")
	return "'" + escaped + "'"
}

// Raw is an escape hatch for arbitrary SQL expressions.
type Raw string

// SQL renders the raw SQL as-is.
func (r Raw) SQL() string {
	return string(r)
}

// Int represents an integer literal.
type Int int

// SQL renders the integer.
func (i Int) SQL() string {
	return strconv.Itoa(int(i))
}

// Null represents SQL NULL.
type Null struct{}

// SQL renders NULL.
func (Null) SQL() string {
	return "NULL"
}

// Func represents a SQL function call.
type Func struct {
	Name string
	Args []Expr
}

// SQL renders the function call.
func (f Func) SQL() string {
	return f.Name + "(" + renderList(f.Args, ", ") + ")"
}

// Coalesce renders coalesce(args...).
func Coalesce(args ...Expr) Func {
	return Func{Name: "coalesce", Args: args}
}

// Alias wraps an expression with an alias (expr AS alias).
type Alias struct {
	Expr Expr
	Name string
}

// SQL renders the aliased expression.
func (a Alias) SQL() string {
	return a.Expr.SQL() + " AS " + a.Name
}

// SelectAs creates an aliased column expression (expr AS alias).
func SelectAs(expr Expr, alias string) Alias {
	return Alias{Expr: expr, Name: alias}
}

// Paren wraps an expression in parentheses.
type Paren struct {
	Expr Expr
}

// SQL renders the parenthesized expression.
func (p Paren) SQL() string {
	return "(" + p.Expr.SQL() + ")"
}

// Cast renders a PostgreSQL cast (expr::type).
type Cast struct {
	Expr Expr
	Type string
}

// SQL renders the cast.
func (c Cast) SQL() string {
	return c.Expr.SQL() + "::" + c.Type
}

// Commented prefixes an expression with SQL line comments.
type Commented struct {
	Comments []string
	Expr     Expr
}

// SQL renders the comments, one per line, followed by the expression.
func (c Commented) SQL() string {
	var b strings.Builder
	for _, line := range c.Comments {
		b.WriteString("-- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(c.Expr.SQL())
	return b.String()
}

// Subquery renders a statement as a parenthesized, indented expression.
type Subquery struct {
	Query SQLer
}

// SQL renders the subquery.
func (s Subquery) SQL() string {
	return "(\n" + IndentLines(s.Query.SQL(), Indent) + "\n)"
}

func renderList(exprs []Expr, sep string) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.SQL()
	}
	return strings.Join(parts, sep)
}
