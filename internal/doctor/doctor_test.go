package doctor

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/sqljson/internal/generator"
	"github.com/pthm/sqljson/internal/testschema"
	"github.com/pthm/sqljson/pkg/dbcheck"
	"github.com/pthm/sqljson/pkg/dbmd"
	"github.com/pthm/sqljson/pkg/introspect"
)

const drugsQueries = `
querySpecs:
  - queryName: drugs
    resultRepresentations: [JSON_OBJECT_ROWS, JSON_ARRAY_ROW]
    tableJson:
      table: drug
      fieldExpressions:
        - field: id
        - field: name
`

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// project writes a snapshot and a query file into a temp dir and returns
// their paths. A nil snapshot or empty queries leaves that file out.
func project(t *testing.T, snapshot *dbmd.Schema, queries string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbmdPath := filepath.Join(dir, "dbmd.yaml")
	queriesPath := filepath.Join(dir, "queries.yaml")
	if snapshot != nil {
		require.NoError(t, dbmd.Save(dbmdPath, snapshot))
	}
	if queries != "" {
		require.NoError(t, os.WriteFile(queriesPath, []byte(queries), 0o644))
	}
	return queriesPath, dbmdPath
}

func statusOf(t *testing.T, r *Report, name string) Status {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c.Status
		}
	}
	t.Fatalf("no check named %q", name)
	return StatusFail
}

func TestRunWithoutDatabase(t *testing.T) {
	queriesPath, dbmdPath := project(t, testschema.Pharma(), drugsQueries)

	d := New(queriesPath, dbmdPath, WithGeneratorOptions(generator.WithLogger(discard())))
	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, report.HasErrors())
	assert.Equal(t, StatusPass, statusOf(t, report, "snapshot_valid"))
	assert.Equal(t, StatusPass, statusOf(t, report, "queries_valid"))
	assert.Equal(t, StatusPass, statusOf(t, report, "query_drugs"))
	assert.Equal(t, StatusWarn, statusOf(t, report, "database_skipped"))
	assert.Equal(t, 3, report.Passed)
	assert.Equal(t, 1, report.Warnings)
}

func TestRunMissingFiles(t *testing.T) {
	queriesPath, dbmdPath := project(t, nil, "")

	report, err := New(queriesPath, dbmdPath).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.HasErrors())
	assert.Equal(t, StatusFail, statusOf(t, report, "snapshot_exists"))
	assert.Equal(t, StatusFail, statusOf(t, report, "queries_valid"))
	assert.Equal(t, StatusWarn, statusOf(t, report, "generation_skipped"))
}

func TestRunFailingQuery(t *testing.T) {
	queries := drugsQueries + `
  - queryName: broken
    tableJson:
      table: no_such_table
`
	queriesPath, dbmdPath := project(t, testschema.Pharma(), queries)

	d := New(queriesPath, dbmdPath, WithGeneratorOptions(generator.WithLogger(discard())))
	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.HasErrors())
	assert.Equal(t, StatusPass, statusOf(t, report, "query_drugs"))
	assert.Equal(t, StatusFail, statusOf(t, report, "query_broken"))
}

func drugOnly() *dbmd.Schema {
	prec := 32
	return &dbmd.Schema{
		Name:     "public",
		DBMSName: "PostgreSQL",
		Tables: []dbmd.Table{{
			ID: dbmd.RelID{Schema: "public", Name: "drug"},
			Columns: []dbmd.Column{
				{Name: "id", Type: dbmd.TypeInteger, DBType: "int4", Precision: &prec, PrimaryKeyPart: 1},
				{Name: "name", Type: dbmd.TypeVarchar, DBType: "varchar"},
				{Name: "registered", Type: dbmd.TypeTimestamp, DBType: "timestamptz", Nullable: true},
			},
		}},
	}
}

// mockDatabase returns a database whose catalog holds drug and audit_log.
func mockDatabase(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery(`server_version`).
		WillReturnRows(sqlmock.NewRows([]string{"server_version"}).AddRow("18.0"))
	mock.ExpectQuery(`information_schema\.columns`).
		WillReturnRows(sqlmock.NewRows([]string{
			"table_schema", "table_name", "column_name", "data_type", "udt_name",
			"character_maximum_length", "numeric_precision", "numeric_scale", "is_nullable",
		}).
			AddRow("public", "audit_log", "id", "bigint", "int8", nil, 64, 0, "NO").
			AddRow("public", "drug", "id", "integer", "int4", nil, 32, 0, "NO").
			AddRow("public", "drug", "name", "character varying", "varchar", 500, nil, nil, "NO"))
	mock.ExpectQuery(`contype = 'p'`).
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "relname", "attname", "ord"}).
			AddRow("public", "drug", "id", 1))
	mock.ExpectQuery(`contype = 'f'`).
		WillReturnRows(sqlmock.NewRows([]string{"conname", "cnsp", "crel", "pnsp", "prel", "catt", "patt"}))
	return db, mock
}

func TestRunDatabaseDrift(t *testing.T) {
	queriesPath, dbmdPath := project(t, drugOnly(), drugsQueries)

	db, mock := mockDatabase(t)
	for range 2 {
		mock.ExpectBegin()
		mock.ExpectExec(`^EXPLAIN `).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()
	}

	d := New(queriesPath, dbmdPath,
		WithDatabase(db, introspect.WithLogger(discard())),
		WithGeneratorOptions(generator.WithLogger(discard())),
		WithCheckOptions(dbcheck.WithLogger(discard())),
	)
	report, err := d.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.False(t, report.HasErrors())
	assert.Equal(t, StatusPass, statusOf(t, report, "database_metadata"))
	assert.Equal(t, StatusWarn, statusOf(t, report, "snapshot_drift"))
	assert.Equal(t, StatusPass, statusOf(t, report, "database_statements"))

	for _, c := range report.Checks {
		if c.Name == "snapshot_drift" {
			assert.Equal(t,
				"column public.drug.registered: missing from database\n"+
					"table public.audit_log: missing from snapshot",
				c.Details)
		}
	}
}

func TestRunRejectedStatement(t *testing.T) {
	queriesPath, dbmdPath := project(t, drugOnly(), drugsQueries)

	db, mock := mockDatabase(t)
	mock.ExpectBegin()
	mock.ExpectExec(`^EXPLAIN `).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(`^EXPLAIN `).WillReturnError(errors.New(`permission denied for table drug`))
	mock.ExpectRollback()

	d := New(queriesPath, dbmdPath,
		WithDatabase(db, introspect.WithLogger(discard())),
		WithGeneratorOptions(generator.WithLogger(discard())),
		WithCheckOptions(dbcheck.WithLogger(discard())),
	)
	report, err := d.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.True(t, report.HasErrors())
	assert.Equal(t, StatusFail, statusOf(t, report, "database_statements"))
	for _, c := range report.Checks {
		if c.Name == "database_statements" {
			assert.Equal(t, `query "drugs" (JSON_ARRAY_ROW): permission denied for table drug`, c.Details)
		}
	}
}

func TestRunCancelled(t *testing.T) {
	queriesPath, dbmdPath := project(t, testschema.Pharma(), drugsQueries)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(queriesPath, dbmdPath, WithGeneratorOptions(generator.WithLogger(discard()))).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDiff(t *testing.T) {
	snapshot := testschema.Pharma()
	live := testschema.Pharma()

	assert.Empty(t, Diff(snapshot, live))

	drug := &live.Tables[2]
	require.Equal(t, "drug", drug.ID.Name)
	// name, mesh_id
	drug.Columns[1].Nullable = true
	drug.Columns[3].Type = dbmd.TypeOther
	drug.Columns = append(drug.Columns, dbmd.Column{Name: "atc_code", Type: dbmd.TypeVarchar})
	// compound_entered_by_fk
	live.ForeignKeys = live.ForeignKeys[1:]
	live.Tables = append(live.Tables, dbmd.Table{ID: dbmd.RelID{Schema: "reporting", Name: "daily"}})

	assert.Equal(t, []string{
		"column public.drug.atc_code: missing from snapshot",
		"column public.drug.mesh_id: type varchar in snapshot, other in database",
		"column public.drug.name: nullable false in snapshot, true in database",
		"foreign key public.compound(entered_by->id) public.analyst: missing from database",
	}, Diff(snapshot, live))
}

func TestReportPrint(t *testing.T) {
	r := &Report{}
	r.AddCheck(CheckResult{Category: "Queries", Name: "a", Status: StatusPass, Message: "3 queries", Details: "drugs"})
	r.AddCheck(CheckResult{Category: "Database", Name: "b", Status: StatusWarn, Message: "drift", Details: "line one\nline two", FixHint: "run introspect"})

	var quietOut bytes.Buffer
	r.Print(&quietOut, false)
	out := quietOut.String()
	assert.Contains(t, out, "Queries")
	assert.Contains(t, out, "✓ 3 queries")
	assert.Contains(t, out, "⚠ drift")
	assert.Contains(t, out, "Fix: run introspect")
	assert.NotContains(t, out, "line one")
	assert.Contains(t, out, "Summary: 1 passed, 1 warnings, 0 errors")

	var verboseOut bytes.Buffer
	r.Print(&verboseOut, true)
	assert.Contains(t, verboseOut.String(), "      line two")
}
