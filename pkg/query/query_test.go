package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/sqljson/pkg/query"
)

const drugsDocument = `
defaultSchema: public
outputFieldNameDefault: CAMELCASE
generateUnqualifiedNamesForSchemas: [public]
querySpecs:
  - queryName: drugs query
    resultRepresentations: [JSON_OBJECT_ROWS, MULTI_COLUMN_ROWS]
    orderBy: $$.name
    tableJson:
      table: drug
      fieldExpressions:
        - name
        - mesh_id
        - expression: $$.cid + 1000
          jsonProperty: cidPlus1000
          fieldTypeInGeneratedSource: number
      referencedParentTables:
        - referenceName: compound
          tableJson:
            table: compound
            fieldExpressions: [display_name]
      childTableCollections:
        - collectionName: brands
          tableJson:
            table: brand
            fieldExpressions: [brand_name]
          foreignKeyFields: [drug_id]
          orderBy: $$.brand_name
      recordCondition:
        sql: $$.id = :id
        paramNames: [id]
`

func drugsBuilt() query.Query {
	return query.New("drugs query",
		query.Table("drug",
			query.Cols("name", "mesh_id"),
			query.Expr("$$.cid + 1000", "cidPlus1000", "number"),
			query.Ref("compound", query.Table("compound", query.Cols("display_name"))),
			query.Children("brands",
				query.Table("brand", query.Cols("brand_name")),
				query.ViaFields("drug_id"),
				query.OrderedBy("$$.brand_name"),
			),
			query.Where("$$.id = :id", "id"),
		),
		query.WithReprs(query.JSONObjectRows, query.MultiColumnRows),
		query.WithOrderBy("$$.name"),
	)
}

func TestBuilderMatchesDocument(t *testing.T) {
	g, err := query.ParseGroup([]byte(drugsDocument))
	require.NoError(t, err)
	require.Len(t, g.Queries, 1)

	assert.Equal(t, drugsBuilt(), g.Queries[0])
	assert.Equal(t, []string{"public"}, g.UnqualifiedSchemas)
}

func TestDocumentRoundTrip(t *testing.T) {
	g, err := query.ParseGroup([]byte(drugsDocument))
	require.NoError(t, err)

	out, err := query.MarshalGroup(g)
	require.NoError(t, err)
	assert.Contains(t, string(out), "- name\n", "plain column fields use the short form")

	again, err := query.ParseGroup(out)
	require.NoError(t, err)
	assert.Equal(t, g, again)
}

func TestDefaults(t *testing.T) {
	built := query.New("q", query.Table("drug", query.Cols("name")))
	loaded, err := query.ParseGroup([]byte("querySpecs:\n  - queryName: q\n    tableJson: {table: drug, fieldExpressions: [name]}\n"))
	require.NoError(t, err)

	for name, q := range map[string]*query.Query{"built": &built, "loaded": &loaded.Queries[0]} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, []query.ResultRepr{query.JSONObjectRows}, q.ResultReprs())
			assert.True(t, q.ShouldGenerateResultTypes())
			assert.True(t, q.ShouldGenerateSource())
			assert.Equal(t, query.CamelCase, q.Naming(loaded))
		})
	}
}

func TestNamingPrecedence(t *testing.T) {
	g := &query.Group{FieldNaming: query.AsInDB}
	q := query.New("q", query.Table("drug"))
	assert.Equal(t, query.AsInDB, q.Naming(g))

	q = query.New("q", query.Table("drug"), query.WithFieldNaming(query.CamelCase))
	assert.Equal(t, query.CamelCase, q.Naming(g))
}

func TestSourceRequiresResultTypes(t *testing.T) {
	q := query.New("q", query.Table("drug"), query.WithoutResultTypes())
	assert.False(t, q.ShouldGenerateSource())

	q = query.New("q", query.Table("drug"), query.WithoutSource())
	assert.True(t, q.ShouldGenerateResultTypes())
	assert.False(t, q.ShouldGenerateSource())
}

func TestNestedOrder(t *testing.T) {
	tbl := query.Table("drug",
		query.Children("brands", query.Table("brand"), query.Unwrapped(), query.Filtered("$$.language_code = 'en'")),
		query.Ref("compound", query.Table("compound"), query.Optional()),
		query.Inline(query.Table("analyst"), query.ViaFields("registered_by")),
	)

	nested := tbl.Nested()
	require.Len(t, nested, 3)

	assert.Equal(t, query.Flatten, nested[0].Kind)
	assert.Equal(t, []string{"registered_by"}, nested[0].ForeignKeyFields)
	assert.Equal(t, "inline parent 'analyst'", nested[0].Describe())

	assert.Equal(t, query.Object, nested[1].Kind)
	assert.True(t, nested[1].Optional)
	assert.True(t, nested[1].IsParent())

	assert.Equal(t, query.Array, nested[2].Kind)
	assert.True(t, nested[2].Unwrap)
	assert.Equal(t, "$$.language_code = 'en'", nested[2].Filter)
	assert.False(t, nested[2].IsParent())
	assert.Equal(t, "collection 'brands'", nested[2].Describe())
}

func TestParseGroupErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "duplicate names",
			doc:  "querySpecs:\n  - {queryName: a, tableJson: {table: t}}\n  - {queryName: a, tableJson: {table: t}}\n",
			want: `duplicate query name "a"`,
		},
		{
			name: "missing name",
			doc:  "querySpecs:\n  - {tableJson: {table: t}}\n",
			want: "query 1 has no name",
		},
		{
			name: "bad naming",
			doc:  "outputFieldNameDefault: SNAKE\nquerySpecs: []\n",
			want: `unknown output field naming "SNAKE"`,
		},
		{
			name: "unknown field key",
			doc:  "querySpecs:\n  - {queryName: a, tableJson: {table: t, fieldExpressions: [{column: x}]}}\n",
			want: "unknown field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := query.ParseGroup([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseGroupNormalizesNames(t *testing.T) {
	g, err := query.ParseGroup([]byte(`
outputFieldNameDefault: as-in-db
querySpecs:
  - queryName: a
    resultRepresentations: [json_object_rows, multi-column-rows]
    tableJson: {table: t}
  - queryName: b
    outputFieldNameDefault: camelCase
    tableJson: {table: t}
`))
	require.NoError(t, err)

	assert.Equal(t, query.AsInDB, g.FieldNaming)
	a, _ := g.Query("a")
	assert.Equal(t, []query.ResultRepr{query.JSONObjectRows, query.MultiColumnRows}, a.Reprs)
	assert.Equal(t, query.AsInDB, a.Naming(g))
	b, _ := g.Query("b")
	assert.Equal(t, query.CamelCase, b.Naming(g))
}

func TestQueryValidate(t *testing.T) {
	g, err := query.ParseGroup([]byte(`
querySpecs:
  - {queryName: a, resultRepresentations: [ROWS], tableJson: {table: t}}
  - {queryName: b, outputFieldNameDefault: SNAKE, tableJson: {table: t}}
  - {queryName: c, resultRepresentations: [json-array-row], tableJson: {table: t}}
`))
	require.NoError(t, err, "query settings are checked per query")

	assert.EqualError(t, g.Queries[0].Validate(), `unknown result representation "ROWS"`)
	assert.EqualError(t, g.Queries[1].Validate(), `unknown output field naming "SNAKE"`)
	assert.NoError(t, g.Queries[2].Validate())

	built := query.New("d", query.Table("t"), query.WithReprs("Json_Array_Row"))
	assert.NoError(t, built.Validate())
	assert.Equal(t, []query.ResultRepr{query.JSONArrayRow}, built.ResultReprs())
}

func TestParseResultRepr(t *testing.T) {
	r, err := query.ParseResultRepr("json-array-row")
	require.NoError(t, err)
	assert.Equal(t, query.JSONArrayRow, r)

	_, err = query.ParseResultRepr("csv")
	assert.Error(t, err)
}
