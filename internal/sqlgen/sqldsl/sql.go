package sqldsl

import (
	"fmt"
	"strings"
)

// Indent is the indentation unit of rendered statements.
const Indent = "  "

// Optf returns formatted string if condition is true, empty string otherwise.
// Useful for optional SQL clauses.
func Optf(cond bool, format string, args ...any) string {
	if !cond {
		return ""
	}
	return fmt.Sprintf(format, args...)
}

// SQLer is an interface for types that can render SQL.
type SQLer interface {
	SQL() string
}

// JoinClause represents a SQL JOIN clause.
type JoinClause struct {
	Comments  []string
	Type      string // "INNER", "LEFT", etc.
	TableExpr TableExpr
	On        Expr
}

// SQL renders the JOIN clause.
func (j JoinClause) SQL() string {
	var b strings.Builder
	for _, c := range j.Comments {
		b.WriteString("-- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	b.WriteString(j.Type)
	b.WriteString(" JOIN ")
	b.WriteString(j.TableExpr.TableSQL())
	if j.On != nil {
		b.WriteString(" ON ")
		b.WriteString(j.On.SQL())
	}
	return b.String()
}

// SelectStmt represents a SELECT query. Rendering puts every select entry on
// its own line so that nested subqueries stay readable.
type SelectStmt struct {
	Comments    []string
	Distinct    bool
	ColumnExprs []Expr
	FromExpr    TableExpr
	Joins       []JoinClause
	Where       Expr
	OrderBy     []string
	ForUpdate   bool
	Limit       int
}

// SQL renders the SELECT statement.
func (s SelectStmt) SQL() string {
	var lines []string
	for _, c := range s.Comments {
		lines = append(lines, "-- "+c)
	}
	lines = append(lines, "SELECT"+Optf(s.Distinct, " DISTINCT"))
	lines = append(lines, s.columnsSQL()...)
	if s.FromExpr != nil {
		lines = append(lines, "FROM", IndentLines(s.FromExpr.TableSQL(), Indent))
	}
	for _, j := range s.Joins {
		lines = append(lines, IndentLines(j.SQL(), Indent))
	}
	if where := s.whereSQL(); where != "" {
		lines = append(lines, where)
	}
	if len(s.OrderBy) > 0 {
		lines = append(lines, "ORDER BY "+strings.Join(s.OrderBy, ", "))
	}
	if s.ForUpdate {
		lines = append(lines, "FOR UPDATE")
	}
	if s.Limit > 0 {
		lines = append(lines, fmt.Sprintf("LIMIT %d", s.Limit))
	}
	return strings.Join(lines, "\n")
}

func (s SelectStmt) columnsSQL() []string {
	if len(s.ColumnExprs) == 0 {
		return []string{Indent + "1"}
	}
	lines := make([]string, len(s.ColumnExprs))
	for i, e := range s.ColumnExprs {
		col := e.SQL()
		if i < len(s.ColumnExprs)-1 {
			col += ","
		}
		lines[i] = IndentLines(col, Indent)
	}
	return lines
}

func (s SelectStmt) whereSQL() string {
	return whereClause(s.Where)
}

// whereClause renders a WHERE clause, one conjunct per line for an AndExpr
// with several operands. A nil or empty condition renders nothing.
func whereClause(where Expr) string {
	if where == nil {
		return ""
	}
	if a, ok := where.(AndExpr); ok {
		switch len(a.Exprs) {
		case 0:
			return ""
		case 1:
		default:
			parts := make([]string, len(a.Exprs))
			for i, e := range a.Exprs {
				parts[i] = e.SQL()
			}
			return "WHERE " + strings.Join(parts, "\n"+Indent+"AND ")
		}
	}
	return "WHERE " + where.SQL()
}

// IndentLines adds the given indent prefix to each line of input.
func IndentLines(input, indent string) string {
	if input == "" {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(input), "\n")
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
