package gogen

import (
	"bytes"
	"fmt"
	"path"

	"github.com/dave/jennifer/jen"

	"github.com/pthm/sqljson/internal/clientgen"
	"github.com/pthm/sqljson/pkg/dbmd"
)

// GenerateRelations renders <package>/relations.go, default package
// "relations". Every table becomes a variable holding its qualified name
// and one Column per column:
//
//	relations.Drug.Relation     // "public.drug"
//	relations.Drug.MeshId.Name  // "mesh_id"
func (g *Generator) GenerateRelations(s *dbmd.Schema, cfg *clientgen.Config) (map[string][]byte, error) {
	if cfg == nil {
		cfg = g.DefaultConfig()
	}
	pkg := cfg.Package
	if pkg == "" {
		pkg = "relations"
	}

	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by sqljson. DO NOT EDIT.")
	for _, l := range cfg.HeaderLines() {
		f.HeaderComment(l)
	}

	f.Comment("Column describes one database column. Numeric attributes are zero when unknown.")
	f.Type().Id("Column").Struct(
		jen.Id("Name").String(),
		jen.Id("DBType").String(),
		jen.Id("Type").String(),
		jen.Id("Length").Int(),
		jen.Id("Precision").Int(),
		jen.Id("Scale").Int(),
		jen.Id("Nullable").Bool(),
		jen.Id("PrimaryKeyPart").Int(),
	)
	f.Line()

	names := tableNames(s)
	seen := make(map[string]string, len(s.Tables))
	for i := range s.Tables {
		t := &s.Tables[i]
		name := names[t.ID]
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("gogen: tables %s and %s both render as %s", prev, t.ID, name)
		}
		seen[name] = t.ID.String()

		fields := []jen.Code{jen.Id("Relation").String()}
		values := jen.Dict{jen.Id("Relation"): jen.Lit(t.ID.String())}
		for _, c := range t.Columns {
			id := FieldName(c.Name)
			if id == "Relation" {
				id = "RelationColumn"
			}
			fields = append(fields, jen.Id(id).Id("Column"))
			values[jen.Id(id)] = columnValue(&c)
		}
		f.Commentf("%s is table %s.", name, t.ID)
		f.Var().Id(name).Op("=").Struct(fields...).Values(values)
		f.Line()
	}

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("gogen: rendering relations: %w", err)
	}
	return map[string][]byte{path.Join(pkg, "relations.go"): buf.Bytes()}, nil
}

// tableNames names table variables after the table, prefixed with the
// schema when several schemas hold a table of that name.
func tableNames(s *dbmd.Schema) map[dbmd.RelID]string {
	count := make(map[string]int, len(s.Tables))
	for _, t := range s.Tables {
		count[FieldName(t.ID.Name)]++
	}
	names := make(map[dbmd.RelID]string, len(s.Tables))
	for _, t := range s.Tables {
		name := FieldName(t.ID.Name)
		if count[name] > 1 && t.ID.Schema != "" {
			name = FieldName(t.ID.Schema + "_" + t.ID.Name)
		}
		names[t.ID] = name
	}
	return names
}

func columnValue(c *dbmd.Column) *jen.Statement {
	d := jen.Dict{
		jen.Id("Name"): jen.Lit(c.Name),
		jen.Id("Type"): jen.Lit(string(c.Type)),
	}
	if c.DBType != "" {
		d[jen.Id("DBType")] = jen.Lit(c.DBType)
	}
	for id, v := range map[string]*int{"Length": c.Length, "Precision": c.Precision, "Scale": c.Scale} {
		if v != nil {
			d[jen.Id(id)] = jen.Lit(*v)
		}
	}
	if c.Nullable {
		d[jen.Id("Nullable")] = jen.True()
	}
	if c.PrimaryKeyPart > 0 {
		d[jen.Id("PrimaryKeyPart")] = jen.Lit(c.PrimaryKeyPart)
	}
	return jen.Id("Column").Values(d)
}

// GenerateStatement renders <package>/params.go with the statement's SQL
// resource name and one constant per parameter: the parameter name for
// named parameters, its first position for numbered ones.
func (g *Generator) GenerateStatement(st *clientgen.Statement, cfg *clientgen.Config) (map[string][]byte, error) {
	if cfg == nil {
		cfg = g.DefaultConfig()
	}
	pkg := cfg.Package
	if pkg == "" {
		pkg = PackageName(st.Name)
	}

	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by sqljson. DO NOT EDIT.")
	for _, l := range cfg.HeaderLines() {
		f.HeaderComment(l)
	}

	f.Const().DefsFunc(func(grp *jen.Group) {
		grp.Commentf("SQLResource is the file holding the SQL of statement %q.", st.Name)
		grp.Id("SQLResource").Op("=").Lit(st.SQLResource)
		for _, p := range st.DistinctParams() {
			if st.Numbered {
				grp.Id(FieldName(p.Name) + "ParamNum").Op("=").Lit(p.Position)
			} else {
				grp.Id(FieldName(p.Name) + "Param").Op("=").Lit(p.Name)
			}
		}
	})
	f.Line()
	f.Comment("ParamNames lists the parameters in statement order.")
	f.Var().Id("ParamNames").Op("=").Index().String().ValuesFunc(func(grp *jen.Group) {
		for _, p := range st.Params {
			grp.Lit(p)
		}
	})

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("gogen: rendering %s: %w", st.Name, err)
	}
	return map[string][]byte{path.Join(pkg, "params.go"): buf.Bytes()}, nil
}
