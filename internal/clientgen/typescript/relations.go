package typescript

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/pthm/sqljson/internal/clientgen"
	"github.com/pthm/sqljson/pkg/dbmd"
)

// GenerateRelations renders relations.ts (or <Package>.ts), an object of
// column descriptions keyed by schema, table and column name.
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
	b.WriteString(`
export interface Column {
  name: string;
  dbType?: string;
  type: string;
  length?: number;
  precision?: number;
  scale?: number;
  nullable: boolean;
  pkPart?: number;
}

export const relations = {
`)
	for _, schema := range schemas(s) {
		fmt.Fprintf(&b, "  %s: {\n", key(schema))
		for _, t := range s.Tables {
			if t.ID.Schema != schema {
				continue
			}
			fmt.Fprintf(&b, "    %s: {\n", key(t.ID.Name))
			for _, c := range t.Columns {
				fmt.Fprintf(&b, "      %s: %s,\n", key(c.Name), columnLiteral(&c))
			}
			b.WriteString("    },\n")
		}
		b.WriteString("  },\n")
	}
	b.WriteString("} as const satisfies Record<string, Record<string, Record<string, Column>>>;\n")
	return map[string][]byte{module + ".ts": b.Bytes()}, nil
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

func key(name string) string {
	if identifier.MatchString(name) {
		return name
	}
	return fmt.Sprintf("%q", name)
}

func columnLiteral(c *dbmd.Column) string {
	parts := []string{fmt.Sprintf("name: %q", c.Name)}
	if c.DBType != "" {
		parts = append(parts, fmt.Sprintf("dbType: %q", c.DBType))
	}
	parts = append(parts, fmt.Sprintf("type: %q", string(c.Type)))
	for _, n := range []struct {
		name string
		v    *int
	}{{"length", c.Length}, {"precision", c.Precision}, {"scale", c.Scale}} {
		if n.v != nil {
			parts = append(parts, fmt.Sprintf("%s: %d", n.name, *n.v))
		}
	}
	parts = append(parts, fmt.Sprintf("nullable: %t", c.Nullable))
	if c.PrimaryKeyPart > 0 {
		parts = append(parts, fmt.Sprintf("pkPart: %d", c.PrimaryKeyPart))
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// GenerateStatement renders <statement_name>.ts exporting the SQL resource
// name, the parameter list and one constant per distinct parameter.
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
	b.WriteString("\n")
	fmt.Fprintf(&b, "export const sqlResource = %q;\n", st.SQLResource)
	quoted := make([]string, len(st.Params))
	for i, p := range st.Params {
		quoted[i] = fmt.Sprintf("%q", p)
	}
	fmt.Fprintf(&b, "export const params = [%s] as const;\n", strings.Join(quoted, ", "))
	for _, p := range st.DistinctParams() {
		name := inflect.CamelizeDownFirst(p.Name)
		if !identifier.MatchString(name) {
			return nil, fmt.Errorf("typescript: parameter %q of %s is not an identifier", p.Name, st.Name)
		}
		if st.Numbered {
			fmt.Fprintf(&b, "export const %sParamNum = %d;\n", name, p.Position)
		} else {
			fmt.Fprintf(&b, "export const %sParam = %q;\n", name, p.Name)
		}
	}
	return map[string][]byte{module + ".ts": b.Bytes()}, nil
}

func writeHeader(b *bytes.Buffer, cfg *clientgen.Config) {
	b.WriteString("// Code generated by sqljson. DO NOT EDIT.\n")
	for _, l := range cfg.HeaderLines() {
		fmt.Fprintf(b, "// %s\n", l)
	}
}
