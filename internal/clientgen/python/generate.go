// Package python renders result types as Python TypedDict classes.
//
// Every query becomes one module, <query_name>.py. Classes are emitted
// leaves first so that annotations never refer to a class declared later.
package python

import (
	"bytes"
	"fmt"
	"regexp"
	"slices"

	"github.com/pthm/sqljson/internal/clientgen"
	"github.com/pthm/sqljson/internal/plan"
	"github.com/pthm/sqljson/internal/resulttype"
	"github.com/pthm/sqljson/pkg/dbmd"
)

func init() {
	clientgen.Register(&Generator{})
}

// Generator implements clientgen.Generator for Python.
type Generator struct{}

// Name returns "python" as the runtime identifier.
func (g *Generator) Name() string { return "python" }

// DefaultConfig returns default configuration for Python code generation.
func (g *Generator) DefaultConfig() *clientgen.Config {
	return &clientgen.Config{
		Options: make(map[string]any),
	}
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Generate renders <query_name>.py, or <Package>.py when a package is set.
//
// Field names that are not Python identifiers cannot be declared with the
// class syntax, so such records use the functional TypedDict form.
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
	b.WriteString("from typing import Any, Optional, TypedDict\n")

	for _, n := range leavesFirst(tree.Root) {
		b.WriteString("\n\n")
		if slices.ContainsFunc(n.Fields, func(f resulttype.Field) bool { return !identifier.MatchString(f.Name) }) {
			fmt.Fprintf(&b, "%s = TypedDict(%q, {\n", n.Name, n.Name)
			for _, f := range n.Fields {
				fmt.Fprintf(&b, "    %q: %s,\n", f.Name, fieldType(&f))
			}
			b.WriteString("})\n")
			continue
		}
		fmt.Fprintf(&b, "class %s(TypedDict):\n", n.Name)
		if len(n.Fields) == 0 {
			b.WriteString("    pass\n")
		}
		for _, f := range n.Fields {
			fmt.Fprintf(&b, "    %s: %s\n", f.Name, fieldType(&f))
		}
	}
	return map[string][]byte{module + ".py": b.Bytes()}, nil
}

// leavesFirst orders nodes so that every node follows the nodes its
// fields refer to.
func leavesFirst(root *resulttype.Node) []*resulttype.Node {
	var (
		out  []*resulttype.Node
		seen = make(map[*resulttype.Node]bool)
		walk func(n *resulttype.Node)
	)
	walk = func(n *resulttype.Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		for _, f := range n.Fields {
			if f.Elem != nil {
				f = *f.Elem
			}
			if f.Node != nil {
				walk(f.Node)
			}
		}
		out = append(out, n)
	}
	walk(root)
	return out
}

func fieldType(f *resulttype.Field) string {
	var t string
	switch f.Kind {
	case resulttype.Object:
		t = f.Node.Name
	case resulttype.Array:
		t = "list[" + fieldType(f.Elem) + "]"
	default:
		t = scalarType(f.Type)
	}
	if f.Nullable {
		return "Optional[" + t + "]"
	}
	return t
}

func scalarType(t plan.Type) string {
	if t.Override != "" {
		return t.Override
	}
	switch t.Tag {
	case dbmd.TypeInteger:
		return "int"
	case dbmd.TypeDecimal:
		return "float"
	case dbmd.TypeChar, dbmd.TypeVarchar, dbmd.TypeTimestamp, dbmd.TypeDate:
		return "str"
	case dbmd.TypeBoolean:
		return "bool"
	default:
		return "Any"
	}
}
