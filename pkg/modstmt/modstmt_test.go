package modstmt

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/sqljson"
	"github.com/pthm/sqljson/internal/testschema"
	"github.com/pthm/sqljson/pkg/query"
)

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func generateOne(t *testing.T, spec Spec, opts ...Option) *Statement {
	t.Helper()
	g := &Group{
		DefaultSchema:      "public",
		UnqualifiedSchemas: []string{"public"},
		Statements:         []Spec{spec},
	}
	res, err := Generate(context.Background(), testschema.Pharma(), g, append(opts, quiet())...)
	require.NoError(t, err)
	require.Len(t, res.Statements, 1)
	return res.Statements[0]
}

func TestGenerateInsert(t *testing.T) {
	st := generateOne(t, Spec{
		Name:    "createDrug",
		Command: Insert,
		Table:   "drug",
		Fields: []TargetField{
			{Field: "id"},
			{Field: "name"},
			{Field: "registered", Value: "now()"},
			{Field: "mesh_id", Value: "upper(:mesh)", ParamNames: []string{"mesh"}},
		},
	})
	require.NoError(t, st.Err)

	assert.Equal(t, `INSERT INTO drug
  (
    id,
    name,
    registered,
    mesh_id
  )
VALUES
  (
    :id,
    :name,
    now(),
    upper(:mesh)
  )`, st.SQL)
	assert.Equal(t, []string{"id", "name", "mesh"}, st.TargetParams)
	assert.Empty(t, st.ConditionParams)
	assert.True(t, st.GenerateSource)
	assert.Equal(t, Named, st.Style)
}

func TestGenerateUpdate(t *testing.T) {
	st := generateOne(t, Spec{
		Name:       "renameDrug",
		Command:    Update,
		Table:      "public.drug",
		TableAlias: "d",
		Fields:     []TargetField{{Field: "NAME"}},
		Conditions: []FieldCondition{
			{Field: "id"},
			{Field: "cid", Op: "gt", ParamName: "minCid"},
			{Field: "mesh_id", Op: OpEqIfParamNonNull},
		},
		RecordCondition: &query.RecordCondition{SQL: "$$.registered_by = :analyst", ParamNames: []string{"analyst"}},
	})
	require.NoError(t, st.Err)

	assert.Equal(t, `UPDATE drug d
SET
  name = :name
WHERE d.id = :idCond
  AND d.cid > :minCid
  AND (:meshIdCond IS NULL OR d.mesh_id = :meshIdCond)
  AND (d.registered_by = :analyst)`, st.SQL)
	assert.Equal(t, []string{"name", "idCond", "minCid", "meshIdCond", "analyst"}, st.Params())
}

func TestGenerateDeleteNumbered(t *testing.T) {
	st := generateOne(t, Spec{
		Name:       "removeReferences",
		Command:    Delete,
		Table:      "drug_reference",
		ParamStyle: Numbered,
		Conditions: []FieldCondition{
			{Field: "drug_id"},
			{Field: "priority", Op: OpEqIfParamNonNull},
			{Field: "reference_id", Op: OpIn},
		},
		RecordCondition: &query.RecordCondition{SQL: "@.drug_id > 0", TableAliasVar: "@"},
	})
	require.NoError(t, st.Err)

	assert.Equal(t, `DELETE FROM drug_reference
WHERE drug_id = ?
  AND (? IS NULL OR priority = ?)
  AND reference_id IN (?)
  AND (drug_reference.drug_id > 0)`, st.SQL)
	assert.Equal(t, []string{"drugIdCond", "priorityCond", "priorityCond", "referenceIdCond"}, st.Params())
}

func TestGenerateComparisonOperators(t *testing.T) {
	tests := []struct {
		op   Operator
		want string
	}{
		{OpEq, "WHERE a.id = :idCond"},
		{OpLt, "WHERE a.id < :idCond"},
		{OpLe, "WHERE a.id <= :idCond"},
		{OpGt, "WHERE a.id > :idCond"},
		{OpGe, "WHERE a.id >= :idCond"},
		{OpIn, "WHERE a.id IN (:idCond)"},
		{OpJSONContains, "WHERE a.id @> :idCond"},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			st := generateOne(t, Spec{
				Name:       "deleteAnalyst",
				Command:    Delete,
				Table:      "analyst",
				TableAlias: "a",
				Conditions: []FieldCondition{{Field: "id", Op: tt.op}},
			})
			require.NoError(t, st.Err)
			assert.Equal(t, "DELETE FROM analyst a\n"+tt.want, st.SQL)
		})
	}
}

func TestGenerateNumberedTargets(t *testing.T) {
	st := generateOne(t, Spec{
		Name:       "updateCompound",
		Command:    Update,
		Table:      "compound",
		ParamStyle: "numbered",
		Fields: []TargetField{
			{Field: "display_name"},
			{Field: "cas", Value: "?"},
			{Field: "mol_weight", Value: "round(?, ?)", ParamNames: []string{"weight", "digits"}},
			{Field: "entered", Value: "now()"},
		},
		Conditions: []FieldCondition{{Field: "id", ParamName: "compoundId"}},
	})
	require.NoError(t, st.Err)

	assert.Equal(t, `UPDATE compound
SET
  display_name = ?,
  cas = ?,
  mol_weight = round(?, ?),
  entered = now()
WHERE id = ?`, st.SQL)
	assert.Equal(t, []string{"displayName", "cas", "weight", "digits"}, st.TargetParams)
	assert.Equal(t, []string{"compoundId"}, st.ConditionParams)
}

func TestGenerateQualifiesOtherSchemas(t *testing.T) {
	g := &Group{
		DefaultSchema: "public",
		Statements: []Spec{{
			Name:    "deleteBrand",
			Command: Delete,
			Table:   "brand",
		}},
	}
	res, err := Generate(context.Background(), testschema.Pharma(), g, quiet())
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, "DELETE FROM public.brand", res.Statements[0].SQL)
}

func TestGenerateStatementErrors(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		dialect string
		want    string
		check   func(error) bool
	}{
		{
			name:  "unknown table",
			spec:  Spec{Command: Delete, Table: "nope"},
			want:  `table "nope" not found`,
			check: sqljson.IsUnknownSchemaReferenceErr,
		},
		{
			name:  "unknown target column",
			spec:  Spec{Command: Insert, Table: "drug", Fields: []TargetField{{Field: "colour"}}},
			want:  `column "colour" not found in table "public.drug"`,
			check: sqljson.IsUnknownSchemaReferenceErr,
		},
		{
			name:  "unknown condition column",
			spec:  Spec{Command: Delete, Table: "drug", Conditions: []FieldCondition{{Field: "colour"}}},
			want:  `column "colour" not found in table "public.drug"`,
			check: sqljson.IsUnknownSchemaReferenceErr,
		},
		{
			name:  "insert with alias",
			spec:  Spec{Command: Insert, Table: "drug", TableAlias: "d", Fields: []TargetField{{Field: "id"}}},
			want:  "a table alias is not allowed in an INSERT statement",
			check: sqljson.IsInvalidQueryErr,
		},
		{
			name: "insert with conditions",
			spec: Spec{Command: Insert, Table: "drug", Fields: []TargetField{{Field: "id"}},
				Conditions: []FieldCondition{{Field: "id"}}},
			want:  "field conditions are not allowed in an INSERT statement",
			check: sqljson.IsInvalidQueryErr,
		},
		{
			name:  "update without fields",
			spec:  Spec{Command: Update, Table: "drug"},
			want:  "an UPDATE statement needs at least one target field",
			check: sqljson.IsInvalidQueryErr,
		},
		{
			name:  "delete with fields",
			spec:  Spec{Command: Delete, Table: "drug", Fields: []TargetField{{Field: "id"}}},
			want:  "target fields are not allowed in a DELETE statement",
			check: sqljson.IsInvalidQueryErr,
		},
		{
			name:  "unknown command",
			spec:  Spec{Command: "MERGE", Table: "drug"},
			want:  `unknown command "MERGE"`,
			check: sqljson.IsInvalidQueryErr,
		},
		{
			name:  "unknown operator",
			spec:  Spec{Command: Delete, Table: "drug", Conditions: []FieldCondition{{Field: "id", Op: "LIKE"}}},
			want:  `unknown operator "LIKE"`,
			check: sqljson.IsInvalidQueryErr,
		},
		{
			name: "named parameter missing from value",
			spec: Spec{Command: Update, Table: "drug",
				Fields: []TargetField{{Field: "name", Value: "upper(:n)", ParamNames: []string{"name"}}}},
			want:  `value of field "name" does not reference parameter "name"`,
			check: sqljson.IsInvalidQueryErr,
		},
		{
			name: "too few numbered markers",
			spec: Spec{Command: Update, Table: "drug", ParamStyle: Numbered,
				Fields: []TargetField{{Field: "name", Value: "concat(?, 'x')", ParamNames: []string{"a", "b"}}}},
			want:  `has 1 parameter markers for 2 parameter names`,
			check: sqljson.IsInvalidQueryErr,
		},
		{
			name: "json containment on oracle",
			spec: Spec{Command: Delete, Table: "drug",
				Conditions: []FieldCondition{{Field: "name", Op: OpJSONContains}}},
			dialect: "oracle",
			want:    "oracle has no JSON containment operator",
			check:   sqljson.IsInvalidQueryErr,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.spec.Name = "broken"
			var opts []Option
			if tt.dialect != "" {
				opts = append(opts, WithDialect(tt.dialect))
			}
			st := generateOne(t, tt.spec, opts...)
			require.Error(t, st.Err)
			assert.Contains(t, st.Err.Error(), tt.want)
			assert.Contains(t, st.Err.Error(), `query "broken"`)
			assert.True(t, tt.check(st.Err), "unexpected error kind: %v", st.Err)
			assert.Empty(t, st.SQL)
		})
	}
}

func TestGenerateKeepsGoodStatements(t *testing.T) {
	g := &Group{
		DefaultSchema: "public",
		Statements: []Spec{
			{Name: "good", Command: Delete, Table: "drug", Conditions: []FieldCondition{{Field: "id"}}},
			{Name: "bad", Command: Delete, Table: "missing"},
		},
	}
	res, err := Generate(context.Background(), testschema.Pharma(), g, quiet())
	require.NoError(t, err)

	good, ok := res.Statement("good")
	require.True(t, ok)
	assert.NoError(t, good.Err)
	assert.Equal(t, "DELETE FROM public.drug\nWHERE id = :idCond", good.SQL)

	require.Len(t, res.Failed(), 1)
	assert.Equal(t, "bad", res.Failed()[0].Name)
	assert.Error(t, res.Err())
}

func TestGenerateGroupErrors(t *testing.T) {
	g := &Group{Statements: []Spec{
		{Name: "a", Command: Delete, Table: "drug"},
		{Name: "a", Command: Delete, Table: "brand"},
	}}
	_, err := Generate(context.Background(), testschema.Pharma(), g, quiet())
	require.Error(t, err)
	assert.True(t, sqljson.IsInvalidQueryErr(err))
	assert.Contains(t, err.Error(), `duplicate statement name "a"`)

	_, err = Generate(context.Background(), testschema.Pharma(), &Group{}, quiet(), WithDialect("sqlite"))
	assert.ErrorIs(t, err, sqljson.ErrUnsupportedDialect)
}

func TestParseGroup(t *testing.T) {
	doc := `
defaultSchema: public
generateUnqualifiedNamesForSchemas: [public]
modificationStatementSpecs:
  - statementName: clearMesh
    command: update
    table: drug
    tableAlias: d
    parametersType: numbered
    generateSourceCode: false
    targetFields:
      - field: mesh_id
        value: "null"
    fieldParamConditions:
      - field: mesh_id
        op: eq-if-param-nonnull
        paramName: oldMesh
`
	g, err := ParseGroup([]byte(doc))
	require.NoError(t, err)

	spec, ok := g.Statement("clearMesh")
	require.True(t, ok)
	assert.Equal(t, Update, spec.Command)
	assert.Equal(t, Numbered, spec.ParamStyle)
	assert.Equal(t, OpEqIfParamNonNull, spec.Conditions[0].Op)
	assert.False(t, spec.ShouldGenerateSource())

	res, err := Generate(context.Background(), testschema.Pharma(), g, quiet())
	require.NoError(t, err)
	require.NoError(t, res.Err())
	st := res.Statements[0]
	assert.Equal(t, "UPDATE drug d\nSET\n  mesh_id = null\nWHERE (? IS NULL OR d.mesh_id = ?)", st.SQL)
	assert.Equal(t, []string{"oldMesh", "oldMesh"}, st.Params())
	assert.False(t, st.GenerateSource)

	out, err := MarshalGroup(g)
	require.NoError(t, err)
	again, err := ParseGroup(out)
	require.NoError(t, err)
	assert.Equal(t, g, again)
}

func TestParseGroupErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown key", "modificationStatementSpecs:\n  - statementName: x\n    command: DELETE\n    table: drug\n    colour: red\n", "colour"},
		{"missing name", "modificationStatementSpecs:\n  - command: DELETE\n    table: drug\n", "statement 1 has no name"},
		{"not yaml", "modificationStatementSpecs: [", "parsing statement group"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGroup([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
