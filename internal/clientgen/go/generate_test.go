package gogen_test

import (
	"strings"
	"testing"

	"github.com/pthm/sqljson/internal/clientgen"
	gogen "github.com/pthm/sqljson/internal/clientgen/go"
	"github.com/pthm/sqljson/internal/plan"
	"github.com/pthm/sqljson/internal/resulttype"
	"github.com/pthm/sqljson/internal/testschema"
	"github.com/pthm/sqljson/pkg/dbmd"
	"github.com/pthm/sqljson/pkg/query"
)

func drugsTree(t *testing.T) *resulttype.Tree {
	t.Helper()
	g := &query.Group{DefaultSchema: "public", Queries: []query.Query{
		query.New("drugs", query.Table("drug",
			query.Cols("id", "name", "mesh_id", "registered", "market_entry_date"),
			query.Ref("compound", query.Table("compound", query.Cols("display_name", "mol_weight"))),
			query.Children("brands", query.Table("brand", query.Cols("brand_name"))),
			query.Children("advisoryTexts", query.Table("advisory", query.Cols("text")), query.Unwrapped()),
		)),
	}}
	p, err := plan.Build(testschema.Pharma(), g, &g.Queries[0])
	if err != nil {
		t.Fatalf("plan.Build: %v", err)
	}
	return resulttype.Build(p)
}

// normalize collapses gofmt alignment so assertions do not depend on it.
func normalize(code []byte) string {
	return strings.Join(strings.Fields(string(code)), " ")
}

func TestGenerator_Interface(t *testing.T) {
	gen := &gogen.Generator{}

	t.Run("name returns go", func(t *testing.T) {
		if got := gen.Name(); got != "go" {
			t.Errorf("Name() = %q, want %q", got, "go")
		}
	})

	t.Run("registered", func(t *testing.T) {
		if !clientgen.Registered("go") {
			t.Error("go generator should be registered")
		}
	})

	t.Run("default config has sensible values", func(t *testing.T) {
		cfg := gen.DefaultConfig()
		if cfg.Package != "" {
			t.Errorf("Package = %q, want empty (derived from the query)", cfg.Package)
		}
		if cfg.Options["decimal"] != "float64" {
			t.Errorf("decimal option = %v, want float64", cfg.Options["decimal"])
		}
	})
}

func TestGenerator_Generate(t *testing.T) {
	tree := drugsTree(t)
	gen := &gogen.Generator{}

	t.Run("returns package directory file", func(t *testing.T) {
		files, err := gen.Generate(tree, nil)
		if err != nil {
			t.Fatalf("Generate error: %v", err)
		}
		if len(files) != 1 {
			t.Errorf("Generate returned %d files, want 1", len(files))
		}
		if _, ok := files["drugs/types.go"]; !ok {
			t.Errorf("Generate should return drugs/types.go, got %v", files)
		}
	})

	t.Run("declares structs", func(t *testing.T) {
		files, err := gen.Generate(tree, nil)
		if err != nil {
			t.Fatalf("Generate error: %v", err)
		}
		code := normalize(files["drugs/types.go"])

		for _, want := range []string{
			"// Code generated by sqljson. DO NOT EDIT.",
			"package drugs",
			"type Drug struct {",
			"Id int32 `json:\"id\"`",
			"Name string `json:\"name\"`",
			"MeshId *string `json:\"meshId\"`",
			"Registered *time.Time `json:\"registered\"`",
			"MarketEntryDate *string `json:\"marketEntryDate\"`",
			"Compound Compound `json:\"compound\"`",
			"Brands []Brand `json:\"brands\"`",
			"AdvisoryTexts []string `json:\"advisoryTexts\"`",
			"type Compound struct {",
			"MolWeight *float64 `json:\"molWeight\"`",
			"type Brand struct {",
		} {
			if !strings.Contains(code, want) {
				t.Errorf("generated code missing %q\n%s", want, code)
			}
		}
	})

	t.Run("package and header from config", func(t *testing.T) {
		files, err := gen.Generate(tree, &clientgen.Config{
			Package: "pharma",
			Header:  "// Copyright Example Corp.",
			Options: map[string]any{"decimal": "json.Number"},
		})
		if err != nil {
			t.Fatalf("Generate error: %v", err)
		}
		code := normalize(files["pharma/types.go"])
		if !strings.Contains(code, "package pharma") {
			t.Error("config package should be used")
		}
		if !strings.Contains(code, "// Copyright Example Corp.") {
			t.Error("header should be copied")
		}
		if strings.Contains(code, "// // Copyright") {
			t.Error("header comment markers should not be doubled")
		}
		if !strings.Contains(code, "MolWeight *json.Number") {
			t.Error("decimal option should select json.Number")
		}
	})

	t.Run("rejects unknown decimal option", func(t *testing.T) {
		_, err := gen.Generate(tree, &clientgen.Config{Options: map[string]any{"decimal": "big.Float"}})
		if err == nil {
			t.Error("expected error for unsupported decimal option")
		}
	})
}

func intPtr(n int) *int { return &n }

func TestGenerator_ScalarTypes(t *testing.T) {
	tests := []struct {
		name string
		typ  plan.Type
		want string
	}{
		{"postgres int2", plan.Type{Tag: dbmd.TypeInteger, DBType: "int2", Precision: intPtr(16)}, "V int16"},
		{"postgres int4", plan.Type{Tag: dbmd.TypeInteger, DBType: "int4", Precision: intPtr(32)}, "V int32"},
		{"postgres int8", plan.Type{Tag: dbmd.TypeInteger, DBType: "int8", Precision: intPtr(64)}, "V int64"},
		{"oracle number(4)", plan.Type{Tag: dbmd.TypeInteger, DBType: "NUMBER", Precision: intPtr(4)}, "V int16"},
		{"oracle number(9)", plan.Type{Tag: dbmd.TypeInteger, DBType: "NUMBER", Precision: intPtr(9)}, "V int32"},
		{"oracle number(10)", plan.Type{Tag: dbmd.TypeInteger, DBType: "NUMBER", Precision: intPtr(10)}, "V int64"},
		{"no precision", plan.Type{Tag: dbmd.TypeInteger, DBType: "NUMBER"}, "V int64"},
		{"timestamptz", plan.Type{Tag: dbmd.TypeTimestamp, DBType: "timestamptz"}, "V time.Time"},
		{"timestamp with time zone", plan.Type{Tag: dbmd.TypeTimestamp, DBType: "timestamp with time zone"}, "V time.Time"},
		{"timestamp", plan.Type{Tag: dbmd.TypeTimestamp, DBType: "timestamp"}, "V string"},
		{"timestamp without time zone", plan.Type{Tag: dbmd.TypeTimestamp, DBType: "timestamp without time zone"}, "V string"},
		{"oracle timestamp", plan.Type{Tag: dbmd.TypeTimestamp, DBType: "TIMESTAMP(6)"}, "V string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := &resulttype.Node{Name: "Row", Table: "public.t", Fields: []resulttype.Field{
				{Name: "v", Kind: resulttype.Scalar, Type: tt.typ},
			}}
			tree := &resulttype.Tree{Query: "scalars", Root: root, Nodes: []*resulttype.Node{root}}
			files, err := (&gogen.Generator{}).Generate(tree, nil)
			if err != nil {
				t.Fatalf("Generate error: %v", err)
			}
			code := normalize(files["scalars/types.go"])
			if !strings.Contains(code, tt.want+" `json:\"v\"`") {
				t.Errorf("generated code missing %q\n%s", tt.want, code)
			}
		})
	}
}

func TestNames(t *testing.T) {
	tests := []struct {
		fn   func(string) string
		in   string
		want string
	}{
		{gogen.PackageName, "drugs", "drugs"},
		{gogen.PackageName, "Drug-List", "druglist"},
		{gogen.PackageName, "2024report", "q2024report"},
		{gogen.FieldName, "displayName", "DisplayName"},
		{gogen.FieldName, "brand_name", "BrandName"},
		{gogen.FieldName, "_id", "Id"},
	}
	for _, tt := range tests {
		if got := tt.fn(tt.in); got != tt.want {
			t.Errorf("name(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGenerator_Relations(t *testing.T) {
	gen := &gogen.Generator{}
	files, err := gen.GenerateRelations(testschema.Pharma(), nil)
	if err != nil {
		t.Fatalf("GenerateRelations error: %v", err)
	}
	code := normalize(files["relations/relations.go"])

	for _, want := range []string{
		"// Code generated by sqljson. DO NOT EDIT.",
		"package relations",
		"type Column struct {",
		"// Drug is table public.drug.",
		"var Drug = struct { Relation string Id Column Name Column CompoundId Column MeshId Column",
		`Relation: "public.drug"`,
		`MeshId: Column{ DBType: "varchar", Length: 7, Name: "mesh_id", Nullable: true, Type: "varchar", }`,
		"var DrugReference = struct {",
		`PrimaryKeyPart: 2`,
	} {
		if !strings.Contains(code, want) {
			t.Errorf("generated code missing %q\n%s", want, code)
		}
	}

	t.Run("schema prefix for repeated table names", func(t *testing.T) {
		s := &dbmd.Schema{Tables: []dbmd.Table{
			{ID: dbmd.RelID{Schema: "public", Name: "drug"}, Columns: []dbmd.Column{{Name: "id", Type: dbmd.TypeInteger}}},
			{ID: dbmd.RelID{Schema: "archive", Name: "drug"}, Columns: []dbmd.Column{{Name: "relation", Type: dbmd.TypeVarchar}}},
		}}
		files, err := gen.GenerateRelations(s, &clientgen.Config{Package: "meta"})
		if err != nil {
			t.Fatalf("GenerateRelations error: %v", err)
		}
		code := normalize(files["meta/relations.go"])
		for _, want := range []string{"package meta", "var PublicDrug = struct", "var ArchiveDrug = struct", "RelationColumn Column"} {
			if !strings.Contains(code, want) {
				t.Errorf("generated code missing %q\n%s", want, code)
			}
		}
	})
}

func TestGenerator_Statement(t *testing.T) {
	gen := &gogen.Generator{}

	t.Run("named", func(t *testing.T) {
		files, err := gen.GenerateStatement(&clientgen.Statement{
			Name:        "renameDrug",
			SQLResource: "renameDrug.sql",
			Params:      []string{"name", "idCond"},
		}, nil)
		if err != nil {
			t.Fatalf("GenerateStatement error: %v", err)
		}
		code := normalize(files["renamedrug/params.go"])
		for _, want := range []string{
			"package renamedrug",
			`SQLResource = "renameDrug.sql"`,
			`NameParam = "name"`,
			`IdCondParam = "idCond"`,
			`var ParamNames = []string{"name", "idCond"}`,
		} {
			if !strings.Contains(code, want) {
				t.Errorf("generated code missing %q\n%s", want, code)
			}
		}
	})

	t.Run("numbered", func(t *testing.T) {
		files, err := gen.GenerateStatement(&clientgen.Statement{
			Name:        "clearMesh",
			SQLResource: "clearMesh.sql",
			Params:      []string{"oldMesh", "oldMesh", "idCond"},
			Numbered:    true,
		}, &clientgen.Config{Package: "stmts"})
		if err != nil {
			t.Fatalf("GenerateStatement error: %v", err)
		}
		code := normalize(files["stmts/params.go"])
		for _, want := range []string{"OldMeshParamNum = 1", "IdCondParamNum = 3"} {
			if !strings.Contains(code, want) {
				t.Errorf("generated code missing %q\n%s", want, code)
			}
		}
		if strings.Contains(code, "OldMeshParamNum = 2") {
			t.Error("a repeated parameter should be declared once")
		}
	})
}
