package dbmd_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/sqljson"
	"github.com/pthm/sqljson/internal/testschema"
	"github.com/pthm/sqljson/pkg/dbmd"
)

func TestLookupTable(t *testing.T) {
	s := testschema.Pharma()

	tests := []struct {
		name          string
		input         string
		defaultSchema string
		want          string
		found         bool
	}{
		{name: "bare name", input: "drug", want: "public.drug", found: true},
		{name: "folds case", input: "DRUG", want: "public.drug", found: true},
		{name: "qualified", input: "public.brand", want: "public.brand", found: true},
		{name: "quoted keeps case", input: `"Drug"`, found: false},
		{name: "quoted exact", input: `public."drug"`, want: "public.drug", found: true},
		{name: "default schema miss falls back", input: "drug", defaultSchema: "other", want: "public.drug", found: true},
		{name: "unknown schema", input: "other.drug", found: false},
		{name: "unknown table", input: "drugs", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, ok := s.LookupTable(tt.input, tt.defaultSchema)
			require.Equal(t, tt.found, ok)
			if ok {
				assert.Equal(t, tt.want, tbl.ID.String())
			}
		})
	}
}

func TestLookupTableAmbiguousBareName(t *testing.T) {
	s := &dbmd.Schema{
		Tables: []dbmd.Table{
			{ID: dbmd.RelID{Schema: "a", Name: "item"}},
			{ID: dbmd.RelID{Schema: "b", Name: "item"}},
		},
	}

	_, ok := s.LookupTable("item", "")
	assert.False(t, ok, "bare name present in two schemas must not resolve")

	tbl, ok := s.LookupTable("item", "b")
	require.True(t, ok)
	assert.Equal(t, "b", tbl.ID.Schema)
}

func TestQuoteIfNeeded(t *testing.T) {
	lower := &dbmd.Schema{CaseSensitivity: dbmd.InsensitiveStoredLower}
	upper := &dbmd.Schema{CaseSensitivity: dbmd.InsensitiveStoredUpper}

	tests := []struct {
		schema *dbmd.Schema
		in     string
		want   string
	}{
		{lower, "drug_name", "drug_name"},
		{lower, "drugName", `"drugName"`},
		{lower, "_id", `"_id"`},
		{lower, "order", `"order"`},
		{lower, `"Already"`, `"Already"`},
		{lower, "has space", `"has space"`},
		{lower, `we"ird`, `"we""ird"`},
		{upper, "DRUG_NAME", "DRUG_NAME"},
		{upper, "drug_name", `"drug_name"`},
	}

	for _, tt := range tests {
		if got := tt.schema.QuoteIfNeeded(tt.in); got != tt.want {
			t.Errorf("QuoteIfNeeded(%q) under %s = %q, want %q", tt.in, tt.schema.Sensitivity(), got, tt.want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	lower := &dbmd.Schema{}
	upper := &dbmd.Schema{CaseSensitivity: dbmd.InsensitiveStoredUpper}

	assert.Equal(t, "drug", lower.NormalizeName("Drug"))
	assert.Equal(t, "Drug", lower.NormalizeName(`"Drug"`))
	assert.Equal(t, "DRUG", upper.NormalizeName("drug"))
	assert.Equal(t, `a"b`, upper.NormalizeName(`"a""b"`))
}

func TestQualifiedName(t *testing.T) {
	s := testschema.Pharma()
	id := dbmd.RelID{Schema: "public", Name: "drug"}

	assert.Equal(t, "public.drug", s.QualifiedName(id, nil))
	assert.Equal(t, "drug", s.QualifiedName(id, []string{"PUBLIC"}))
	assert.Equal(t, `"User".drug`, s.QualifiedName(dbmd.RelID{Schema: "User", Name: "drug"}, []string{"public"}))
}

func TestForeignKeysFrom(t *testing.T) {
	s := testschema.Pharma()
	compound := dbmd.RelID{Schema: "public", Name: "compound"}
	analyst := dbmd.RelID{Schema: "public", Name: "analyst"}

	fks := s.ForeignKeysFrom(compound, analyst)
	require.Len(t, fks, 2)
	assert.Equal(t, []string{"entered_by"}, fks[0].ChildColumns())
	assert.True(t, fks[1].HasChildColumns([]string{"approved_by"}))

	assert.Empty(t, s.ForeignKeysFrom(analyst, compound), "direction matters")
}

func TestPrimaryKeyOrder(t *testing.T) {
	tbl := &dbmd.Table{Columns: []dbmd.Column{
		{Name: "b", PrimaryKeyPart: 2},
		{Name: "x"},
		{Name: "a", PrimaryKeyPart: 1},
	}}

	pk := tbl.PrimaryKey()
	require.Len(t, pk, 2)
	assert.Equal(t, "a", pk[0].Name)
	assert.Equal(t, "b", pk[1].Name)
}

func TestValidate(t *testing.T) {
	t.Run("pharma is valid", func(t *testing.T) {
		require.NoError(t, testschema.Pharma().Validate())
	})

	t.Run("foreign key to unknown column", func(t *testing.T) {
		s := testschema.Pharma()
		s.ForeignKeys[0].Components[0].Parent = "missing"
		err := s.Validate()
		require.Error(t, err)
		assert.True(t, sqljson.IsUnknownSchemaReferenceErr(err))
	})

	t.Run("duplicate table", func(t *testing.T) {
		s := testschema.Pharma()
		s.Tables = append(s.Tables, s.Tables[0])
		assert.ErrorContains(t, s.Validate(), "duplicate table public.analyst")
	})
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	orig := testschema.Pharma()

	for _, name := range []string{"dbmd.yaml", "dbmd.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, dbmd.Save(path, orig))

			loaded, err := dbmd.Load(path)
			require.NoError(t, err)
			assert.Equal(t, orig.Tables, loaded.Tables)
			assert.Equal(t, orig.ForeignKeys, loaded.ForeignKeys)
			assert.Equal(t, orig.DBMSName, loaded.DBMSName)
		})
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := dbmd.Parse([]byte("tables: []\ntabels: []\n"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := dbmd.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
