package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/sqljson/internal/generator"
	"github.com/pthm/sqljson/internal/testschema"
	"github.com/pthm/sqljson/pkg/modstmt"
	"github.com/pthm/sqljson/pkg/query"
)

func TestSQLFileName(t *testing.T) {
	assert.Equal(t, "drugs(json object rows).sql", SQLFileName("drugs", query.JSONObjectRows))
	assert.Equal(t, "drugs query(multi column rows).sql", SQLFileName("drugs query", query.MultiColumnRows))
}

func generateDrugs(t *testing.T, opts ...query.QueryOption) *generator.QueryResult {
	t.Helper()
	g := &query.Group{
		DefaultSchema: "public",
		Queries: []query.Query{
			query.New("drugs", query.Table("drug",
				query.Cols("id", "name"),
				query.Where("$$.cid > :minCid", "minCid"),
			), opts...),
		},
	}
	res, err := generator.Generate(context.Background(), testschema.Pharma(), g,
		generator.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	require.NoError(t, res.Err())
	return res.Queries[0]
}

func TestWriteSQLFiles(t *testing.T) {
	q := generateDrugs(t, query.WithReprs(query.JSONArrayRow, query.MultiColumnRows))
	dir := filepath.Join(t.TempDir(), "sql")

	paths, err := WriteSQLFiles(dir, q)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "drugs(json array row).sql"),
		filepath.Join(dir, "drugs(multi column rows).sql"),
	}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "-- Code generated by sqljson. DO NOT EDIT.\n")
	assert.Contains(t, content, "-- JSON_ARRAY_ROW results representation for drugs\n")
	assert.Contains(t, content, "-- params: minCid\n")
	assert.Contains(t, content, q.SQL[query.JSONArrayRow])
}

func TestWriteTypeFiles(t *testing.T) {
	dir := t.TempDir()

	q := generateDrugs(t, query.WithTypesFileHeader("Source: queries.yaml"))
	paths, err := WriteTypeFiles(dir, "typescript", "", q)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "drugs.ts")}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "// Source: queries.yaml")
	assert.Contains(t, string(data), "export interface Drug {")

	paths, err = WriteTypeFiles(dir, "go", "pharma", q)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "pharma", "types.go")}, paths)

	_, err = WriteTypeFiles(dir, "cobol", "", q)
	require.Error(t, err)
}

func TestWriteTypeFilesWithoutSource(t *testing.T) {
	q := generateDrugs(t, query.WithoutSource())
	paths, err := WriteTypeFiles(t.TempDir(), "go", "", q)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestWriteStatementFiles(t *testing.T) {
	g := &modstmt.Group{
		DefaultSchema: "public",
		Statements: []modstmt.Spec{{
			Name:       "renameDrug",
			Command:    modstmt.Update,
			Table:      "drug",
			Fields:     []modstmt.TargetField{{Field: "name"}},
			Conditions: []modstmt.FieldCondition{{Field: "id"}},
		}},
	}
	res, err := modstmt.Generate(context.Background(), testschema.Pharma(), g,
		modstmt.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	st := res.Statements[0]
	require.NoError(t, st.Err)

	sqlDir := filepath.Join(t.TempDir(), "sql")
	typesDir := filepath.Join(t.TempDir(), "types")

	paths, err := WriteStatementFiles(sqlDir, typesDir, "", "", st)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(sqlDir, "renameDrug.sql")}, paths)
	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "-- UPDATE statement renameDrug\n")
	assert.Contains(t, string(data), "-- params: name, idCond\n")
	assert.Contains(t, string(data), st.SQL)

	paths, err = WriteStatementFiles(sqlDir, typesDir, "go", "stmts", st)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(sqlDir, "renameDrug.sql"),
		filepath.Join(typesDir, "stmts", "params.go"),
	}, paths)

	st.GenerateSource = false
	paths, err = WriteStatementFiles(sqlDir, typesDir, "go", "stmts", st)
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}
