// Package typescript renders result types as TypeScript interfaces.
//
// Every query becomes one module, <query_name>.ts, exporting an interface
// per record shape. Values are typed as they arrive from JSON.parse:
// timestamps and dates are strings, and numbers lose no precision
// information beyond what JSON itself carries.
package typescript

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/pthm/sqljson/internal/clientgen"
	"github.com/pthm/sqljson/internal/plan"
	"github.com/pthm/sqljson/internal/resulttype"
	"github.com/pthm/sqljson/pkg/dbmd"
)

func init() {
	clientgen.Register(&Generator{})
}

// Generator implements clientgen.Generator for TypeScript.
type Generator struct{}

// Name returns "typescript" as the runtime identifier.
func (g *Generator) Name() string { return "typescript" }

// DefaultConfig returns default configuration for TypeScript code generation.
func (g *Generator) DefaultConfig() *clientgen.Config {
	return &clientgen.Config{
		Options: make(map[string]any),
	}
}

var identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Generate renders <query_name>.ts, or <Package>.ts when a package is set.
func (g *Generator) Generate(tree *resulttype.Tree, cfg *clientgen.Config) (map[string][]byte, error) {
	if cfg == nil {
		cfg = g.DefaultConfig()
	}
	module := cfg.Package
	if module == "" {
		module = clientgen.SnakeCase(tree.Query)
	}

	var b bytes.Buffer
	writeHeader(&b, cfg)

	for _, n := range tree.Nodes {
		b.WriteString("\n")
		fmt.Fprintf(&b, "export interface %s {\n", n.Name)
		for _, f := range n.Fields {
			name := f.Name
			if !identifier.MatchString(name) {
				name = fmt.Sprintf("%q", name)
			}
			fmt.Fprintf(&b, "  %s: %s;\n", name, fieldType(&f))
		}
		b.WriteString("}\n")
	}
	return map[string][]byte{module + ".ts": b.Bytes()}, nil
}

func fieldType(f *resulttype.Field) string {
	var t string
	switch f.Kind {
	case resulttype.Object:
		t = f.Node.Name
	case resulttype.Array:
		elem := fieldType(f.Elem)
		if f.Elem.Nullable {
			elem = "(" + elem + ")"
		}
		t = elem + "[]"
	default:
		t = scalarType(f.Type)
	}
	if f.Nullable {
		return t + " | null"
	}
	return t
}

func scalarType(t plan.Type) string {
	if t.Override != "" {
		return t.Override
	}
	switch t.Tag {
	case dbmd.TypeInteger, dbmd.TypeDecimal:
		return "number"
	case dbmd.TypeChar, dbmd.TypeVarchar, dbmd.TypeTimestamp, dbmd.TypeDate:
		return "string"
	case dbmd.TypeBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}
