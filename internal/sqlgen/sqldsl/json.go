package sqldsl

import "strings"

// JSONField is one key/value entry of a JSON object constructor.
type JSONField struct {
	Key   string
	Value Expr
}

// JSONBBuildObject renders PostgreSQL's jsonb_build_object('k', v, ...).
type JSONBBuildObject struct {
	Fields []JSONField
}

// SQL renders the constructor with one entry per line.
func (o JSONBBuildObject) SQL() string {
	if len(o.Fields) == 0 {
		return "jsonb_build_object()"
	}
	entries := make([]string, len(o.Fields))
	for i, f := range o.Fields {
		entries[i] = Lit(f.Key).SQL() + ", " + f.Value.SQL()
	}
	return "jsonb_build_object(\n" + IndentLines(strings.Join(entries, ",\n"), Indent) + "\n)"
}

// JSONObject renders the SQL/JSON standard json_object('k' VALUE v, ...)
// as implemented by Oracle, with an optional RETURNING type.
type JSONObject struct {
	Fields    []JSONField
	Returning string
}

// SQL renders the constructor with one entry per line.
func (o JSONObject) SQL() string {
	entries := make([]string, len(o.Fields))
	for i, f := range o.Fields {
		entries[i] = Lit(f.Key).SQL() + " VALUE " + f.Value.SQL()
	}
	body := strings.Join(entries, ",\n")
	if o.Returning != "" {
		body += Optf(body != "", "\n") + "RETURNING " + o.Returning
	}
	if body == "" {
		return "json_object()"
	}
	return "json_object(\n" + IndentLines(body, Indent) + "\n)"
}

// Agg renders an aggregate call whose single argument may be ordered,
// e.g. jsonb_agg(v ORDER BY o) or json_arrayagg(v ORDER BY o RETURNING clob).
type Agg struct {
	Name      string
	Arg       Expr
	OrderBy   string
	Returning string
}

// SQL renders the aggregate.
func (a Agg) SQL() string {
	return a.Name + "(" + a.Arg.SQL() +
		Optf(a.OrderBy != "", " ORDER BY %s", a.OrderBy) +
		Optf(a.Returning != "", " RETURNING %s", a.Returning) + ")"
}

// Treat renders Oracle's treat(expr AS type).
type Treat struct {
	Expr Expr
	Type string
}

// SQL renders the treat expression.
func (t Treat) SQL() string {
	return "treat(" + t.Expr.SQL() + " AS " + t.Type + ")"
}
