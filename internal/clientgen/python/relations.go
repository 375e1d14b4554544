package python

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pthm/sqljson/internal/clientgen"
	"github.com/pthm/sqljson/pkg/dbmd"
)

// GenerateRelations renders relations.py (or <Package>.py) with a Column
// TypedDict and RELATIONS, a dict keyed by schema, table and column name.
func (g *Generator) GenerateRelations(s *dbmd.Schema, cfg *clientgen.Config) (map[string][]byte, error) {
	if cfg == nil {
		cfg = g.DefaultConfig()
	}
	module := cfg.Package
	if module == "" {
		module = "relations"
	}

	var b bytes.Buffer
	writeHeader(&b, cfg)
	b.WriteString(`from typing import TypedDict


class Column(TypedDict, total=False):
    name: str
    db_type: str
    type: str
    length: int
    precision: int
    scale: int
    nullable: bool
    pk_part: int


RELATIONS: dict[str, dict[str, dict[str, Column]]] = {
`)
	for _, schema := range schemas(s) {
		fmt.Fprintf(&b, "    %q: {\n", schema)
		for _, t := range s.Tables {
			if t.ID.Schema != schema {
				continue
			}
			fmt.Fprintf(&b, "        %q: {\n", t.ID.Name)
			for _, c := range t.Columns {
				fmt.Fprintf(&b, "            %q: %s,\n", c.Name, columnLiteral(&c))
			}
			b.WriteString("        },\n")
		}
		b.WriteString("    },\n")
	}
	b.WriteString("}\n")
	return map[string][]byte{module + ".py": b.Bytes()}, nil
}

// schemas returns the schema names in first-table order.
func schemas(s *dbmd.Schema) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range s.Tables {
		if !seen[t.ID.Schema] {
			seen[t.ID.Schema] = true
			out = append(out, t.ID.Schema)
		}
	}
	return out
}

func columnLiteral(c *dbmd.Column) string {
	parts := []string{fmt.Sprintf(`"name": %q`, c.Name)}
	if c.DBType != "" {
		parts = append(parts, fmt.Sprintf(`"db_type": %q`, c.DBType))
	}
	parts = append(parts, fmt.Sprintf(`"type": %q`, string(c.Type)))
	for _, n := range []struct {
		name string
		v    *int
	}{{"length", c.Length}, {"precision", c.Precision}, {"scale", c.Scale}} {
		if n.v != nil {
			parts = append(parts, fmt.Sprintf("%q: %d", n.name, *n.v))
		}
	}
	nullable := "False"
	if c.Nullable {
		nullable = "True"
	}
	parts = append(parts, `"nullable": `+nullable)
	if c.PrimaryKeyPart > 0 {
		parts = append(parts, fmt.Sprintf(`"pk_part": %d`, c.PrimaryKeyPart))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// GenerateStatement renders <statement_name>.py with SQL_RESOURCE, PARAMS
// and one constant per distinct parameter.
func (g *Generator) GenerateStatement(st *clientgen.Statement, cfg *clientgen.Config) (map[string][]byte, error) {
	if cfg == nil {
		cfg = g.DefaultConfig()
	}
	module := cfg.Package
	if module == "" {
		module = clientgen.SnakeCase(st.Name)
	}

	var b bytes.Buffer
	writeHeader(&b, cfg)
	fmt.Fprintf(&b, "SQL_RESOURCE = %q\n", st.SQLResource)
	quoted := make([]string, len(st.Params))
	for i, p := range st.Params {
		quoted[i] = fmt.Sprintf("%q", p)
	}
	tuple := strings.Join(quoted, ", ")
	if len(quoted) == 1 {
		tuple += ","
	}
	fmt.Fprintf(&b, "PARAMS = (%s)\n", tuple)
	for _, p := range st.DistinctParams() {
		name := strings.ToUpper(clientgen.SnakeCase(p.Name))
		if st.Numbered {
			fmt.Fprintf(&b, "%s_PARAM_NUM = %d\n", name, p.Position)
		} else {
			fmt.Fprintf(&b, "%s_PARAM = %q\n", name, p.Name)
		}
	}
	return map[string][]byte{module + ".py": b.Bytes()}, nil
}

func writeHeader(b *bytes.Buffer, cfg *clientgen.Config) {
	b.WriteString("# Code generated by sqljson. DO NOT EDIT.\n")
	for _, l := range cfg.HeaderLines() {
		fmt.Fprintf(b, "# %s\n", l)
	}
}
