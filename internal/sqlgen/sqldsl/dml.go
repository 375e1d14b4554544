package sqldsl

import "strings"

// Assignment is one column assignment of an UPDATE statement.
type Assignment struct {
	Column string
	Value  Expr
}

// SQL renders column = value.
func (a Assignment) SQL() string {
	return a.Column + " = " + a.Value.SQL()
}

// InsertStmt represents an INSERT ... VALUES statement for a single row.
// Columns and Values are parallel.
type InsertStmt struct {
	Comments []string
	Table    string
	Columns  []string
	Values   []Expr
}

// SQL renders the INSERT statement with one column and one value per line.
func (s InsertStmt) SQL() string {
	lines := commentLines(s.Comments)
	lines = append(lines, "INSERT INTO "+s.Table, Indent+"(")
	for i, c := range s.Columns {
		lines = append(lines, Indent+Indent+c+listSep(i, len(s.Columns)))
	}
	lines = append(lines, Indent+")", "VALUES", Indent+"(")
	for i, v := range s.Values {
		lines = append(lines, IndentLines(v.SQL()+listSep(i, len(s.Values)), Indent+Indent))
	}
	lines = append(lines, Indent+")")
	return strings.Join(lines, "\n")
}

// UpdateStmt represents an UPDATE statement.
type UpdateStmt struct {
	Comments []string
	Table    string
	Alias    string
	Set      []Assignment
	Where    Expr
}

// SQL renders the UPDATE statement with one assignment per line.
func (s UpdateStmt) SQL() string {
	lines := commentLines(s.Comments)
	lines = append(lines, "UPDATE "+s.Table+Optf(s.Alias != "", " %s", s.Alias), "SET")
	for i, a := range s.Set {
		lines = append(lines, IndentLines(a.SQL()+listSep(i, len(s.Set)), Indent))
	}
	if where := whereClause(s.Where); where != "" {
		lines = append(lines, where)
	}
	return strings.Join(lines, "\n")
}

// DeleteStmt represents a DELETE statement.
type DeleteStmt struct {
	Comments []string
	Table    string
	Alias    string
	Where    Expr
}

// SQL renders the DELETE statement.
func (s DeleteStmt) SQL() string {
	lines := commentLines(s.Comments)
	lines = append(lines, "DELETE FROM "+s.Table+Optf(s.Alias != "", " %s", s.Alias))
	if where := whereClause(s.Where); where != "" {
		lines = append(lines, where)
	}
	return strings.Join(lines, "\n")
}

func commentLines(comments []string) []string {
	lines := make([]string, 0, len(comments))
	for _, c := range comments {
		lines = append(lines, "-- "+c)
	}
	return lines
}

func listSep(i, n int) string {
	if i < n-1 {
		return ","
	}
	return ""
}
