// Package gogen renders result types as Go struct declarations.
//
// Each query gets its own package directory so that record names such as
// Drug or Compound can be reused by several queries:
//
//	drugs/types.go
//
// Supported options:
//   - "decimal": Go type for decimals with a fractional part, "float64"
//     (default) or "json.Number".
package gogen

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"

	"github.com/pthm/sqljson/internal/clientgen"
	"github.com/pthm/sqljson/internal/plan"
	"github.com/pthm/sqljson/internal/resulttype"
	"github.com/pthm/sqljson/pkg/dbmd"
)

func init() {
	clientgen.Register(&Generator{})
}

// Generator implements clientgen.Generator for Go.
type Generator struct{}

// Name returns "go" as the runtime identifier.
func (g *Generator) Name() string { return "go" }

// DefaultConfig returns default configuration for Go code generation.
func (g *Generator) DefaultConfig() *clientgen.Config {
	return &clientgen.Config{
		Options: map[string]any{"decimal": "float64"},
	}
}

// Generate renders one file, <package>/types.go.
func (g *Generator) Generate(tree *resulttype.Tree, cfg *clientgen.Config) (map[string][]byte, error) {
	if cfg == nil {
		cfg = g.DefaultConfig()
	}
	pkg := cfg.Package
	if pkg == "" {
		pkg = PackageName(tree.Query)
	}
	decimal, _ := cfg.Options["decimal"].(string)
	if decimal != "" && decimal != "float64" && decimal != "json.Number" {
		return nil, fmt.Errorf("gogen: unsupported decimal option %q", decimal)
	}

	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by sqljson. DO NOT EDIT.")
	for _, l := range cfg.HeaderLines() {
		f.HeaderComment(l)
	}

	r := renderer{decimal: decimal}
	for i, n := range tree.Nodes {
		if i == 0 {
			f.Commentf("%s is one result record of query %q.", n.Name, tree.Query)
		} else {
			f.Commentf("%s is a nested record from table %s.", n.Name, n.Table)
		}
		f.Type().Id(n.Name).StructFunc(func(grp *jen.Group) {
			for _, fld := range n.Fields {
				grp.Id(FieldName(fld.Name)).Add(r.fieldType(&fld)).Tag(map[string]string{"json": fld.Name})
			}
		})
		f.Line()
	}

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("gogen: rendering %s: %w", tree.Query, err)
	}
	return map[string][]byte{path.Join(pkg, "types.go"): buf.Bytes()}, nil
}

type renderer struct {
	decimal string
}

func (r renderer) fieldType(f *resulttype.Field) *jen.Statement {
	var t *jen.Statement
	switch f.Kind {
	case resulttype.Object:
		t = jen.Id(f.Node.Name)
	case resulttype.Array:
		return jen.Index().Add(r.fieldType(f.Elem))
	default:
		t = r.scalarType(f.Type)
	}
	if f.Nullable {
		return jen.Op("*").Add(t)
	}
	return t
}

func (r renderer) scalarType(t plan.Type) *jen.Statement {
	if t.Override != "" {
		return jen.Id(t.Override)
	}
	switch t.Tag {
	case dbmd.TypeInteger:
		return integerType(t)
	case dbmd.TypeDecimal:
		if t.Scale != nil && *t.Scale == 0 && t.Precision != nil && *t.Precision <= 18 {
			return jen.Int64()
		}
		if r.decimal == "json.Number" {
			return jen.Qual("encoding/json", "Number")
		}
		return jen.Float64()
	case dbmd.TypeChar, dbmd.TypeVarchar:
		return jen.String()
	case dbmd.TypeTimestamp:
		// Timestamps without a zone have no offset in JSON and do not
		// decode into time.Time.
		if !hasTimeZone(t.DBType) {
			return jen.String()
		}
		return jen.Qual("time", "Time")
	case dbmd.TypeDate:
		// JSON dates ("2006-01-02") do not decode into time.Time.
		return jen.String()
	case dbmd.TypeBoolean:
		return jen.Bool()
	default:
		return jen.Qual("encoding/json", "RawMessage")
	}
}

// integerType picks the narrowest Go integer for a column. PostgreSQL
// integer types are matched by name. Other databases report precision in
// decimal digits (Oracle NUMBER(10)).
func integerType(t plan.Type) *jen.Statement {
	switch strings.ToLower(t.DBType) {
	case "int2", "smallint", "smallserial", "serial2":
		return jen.Int16()
	case "int4", "integer", "int", "serial", "serial4":
		return jen.Int32()
	case "int8", "bigint", "bigserial", "serial8":
		return jen.Int64()
	}
	switch {
	case t.Precision == nil:
		return jen.Int64()
	case *t.Precision <= 4:
		return jen.Int16()
	case *t.Precision <= 9:
		return jen.Int32()
	default:
		return jen.Int64()
	}
}

func hasTimeZone(dbType string) bool {
	dbType = strings.ToLower(dbType)
	return dbType == "" || strings.Contains(dbType, "tz") || strings.Contains(dbType, "with time zone")
}

// PackageName derives a Go package name from a query name: lower case
// letters and digits only.
func PackageName(query string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(query) {
		if r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "q" + name
	}
	return name
}

// FieldName exports an output field name as a Go identifier.
func FieldName(name string) string {
	id := inflect.Camelize(name)
	id = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return -1
	}, id)
	if id == "" || !unicode.IsLetter(rune(id[0])) {
		id = "F" + id
	}
	return id
}
