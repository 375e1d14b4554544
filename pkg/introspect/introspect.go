// Package introspect extracts database metadata for query generation from a
// live PostgreSQL database.
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", dsn)
//	schema, err := introspect.Database(ctx, db,
//	    introspect.WithSchemas("public", "audit"),
//	    introspect.WithExcludeTables("schema_migrations"),
//	)
//
// Tables, views and their columns come from information_schema; primary and
// foreign keys are read from pg_catalog so that composite keys keep their
// declared column order. Four catalog queries are issued in total,
// regardless of the number of tables.
package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/lib/pq"

	"github.com/pthm/sqljson/pkg/dbmd"
)

const versionQuery = `SELECT current_setting('server_version')`

const columnsQuery = `
SELECT
  c.table_schema,
  c.table_name,
  c.column_name,
  c.data_type,
  c.udt_name,
  c.character_maximum_length,
  c.numeric_precision,
  c.numeric_scale,
  c.is_nullable
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema
  AND t.table_name = c.table_name
WHERE c.table_schema = ANY($1)
  AND t.table_type IN ('BASE TABLE', 'VIEW')
ORDER BY c.table_schema, c.table_name, c.ordinal_position`

const primaryKeysQuery = `
SELECT n.nspname, c.relname, a.attname, k.ord
FROM pg_constraint con
JOIN pg_class c ON c.oid = con.conrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
CROSS JOIN LATERAL unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = k.attnum
WHERE con.contype = 'p'
  AND n.nspname = ANY($1)
ORDER BY n.nspname, c.relname, k.ord`

const foreignKeysQuery = `
SELECT
  con.conname,
  cn.nspname,
  c.relname,
  pn.nspname,
  p.relname,
  ca.attname,
  pa.attname
FROM pg_constraint con
JOIN pg_class c ON c.oid = con.conrelid
JOIN pg_namespace cn ON cn.oid = c.relnamespace
JOIN pg_class p ON p.oid = con.confrelid
JOIN pg_namespace pn ON pn.oid = p.relnamespace
CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(child_att, parent_att, ord)
JOIN pg_attribute ca ON ca.attrelid = c.oid AND ca.attnum = k.child_att
JOIN pg_attribute pa ON pa.attrelid = p.oid AND pa.attnum = k.parent_att
WHERE con.contype = 'f'
  AND cn.nspname = ANY($1)
ORDER BY cn.nspname, c.relname, con.conname, k.ord`

type extractor struct {
	db   Querier
	opts *options
}

// Database reads the metadata of the configured schemas. The returned
// schema is validated: foreign keys whose parent table was not extracted
// (another schema, or an excluded table) are dropped.
func Database(ctx context.Context, db Querier, opts ...Option) (*dbmd.Schema, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	x := &extractor{db: db, opts: o}
	start := time.Now()

	version, err := x.version(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read server version: %w", err)
	}

	s := &dbmd.Schema{
		Name:            o.schemas[0],
		CaseSensitivity: dbmd.InsensitiveStoredLower,
		DBMSName:        "PostgreSQL",
		DBMSVersion:     version,
	}

	s.Tables, err = x.tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	if err := x.primaryKeys(ctx, s.Tables); err != nil {
		return nil, fmt.Errorf("failed to get primary keys: %w", err)
	}
	s.ForeignKeys, err = x.foreignKeys(ctx, s.Tables)
	if err != nil {
		return nil, fmt.Errorf("failed to get foreign keys: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	o.logger.Info("introspected database",
		"schemas", o.schemas,
		"tables", len(s.Tables),
		"foreign_keys", len(s.ForeignKeys),
		"duration", time.Since(start))
	return s, nil
}

// withTimeout applies the query timeout unless the parent already has a
// sooner deadline.
func (x *extractor) withTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if x.opts.queryTimeout <= 0 {
		return context.WithCancel(parent)
	}
	if deadline, ok := parent.Deadline(); ok && time.Until(deadline) <= x.opts.queryTimeout {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, x.opts.queryTimeout)
}

func (x *extractor) version(ctx context.Context) (string, error) {
	ctx, cancel := x.withTimeout(ctx)
	defer cancel()

	var v string
	if err := x.db.QueryRowContext(ctx, versionQuery).Scan(&v); err != nil {
		return "", err
	}
	return v, nil
}

func (x *extractor) excluded(schema, table string) bool {
	for _, e := range x.opts.excludeTables {
		if e == table || e == schema+"."+table {
			return true
		}
	}
	return false
}

func (x *extractor) tables(ctx context.Context) ([]dbmd.Table, error) {
	ctx, cancel := x.withTimeout(ctx)
	defer cancel()

	rows, err := x.db.QueryContext(ctx, columnsQuery, pq.Array(x.opts.schemas))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []dbmd.Table
	for rows.Next() {
		var (
			schema, table, dataType, udtName, isNullable string
			length, precision, scale                     sql.NullInt64
			col                                          dbmd.Column
		)
		if err := rows.Scan(&schema, &table, &col.Name, &dataType, &udtName,
			&length, &precision, &scale, &isNullable); err != nil {
			return nil, err
		}
		if x.excluded(schema, table) {
			continue
		}

		col.Type = x.opts.typeMapper.MapType(dataType, udtName)
		col.DBType = udtName
		col.Nullable = isNullable == "YES"
		col.Length = intPtr(length)
		col.Precision = intPtr(precision)
		col.Scale = intPtr(scale)

		id := dbmd.RelID{Schema: schema, Name: table}
		if n := len(tables); n == 0 || tables[n-1].ID != id {
			tables = append(tables, dbmd.Table{ID: id})
		}
		t := &tables[len(tables)-1]
		t.Columns = append(t.Columns, col)
	}
	return tables, rows.Err()
}

func (x *extractor) primaryKeys(ctx context.Context, tables []dbmd.Table) error {
	ctx, cancel := x.withTimeout(ctx)
	defer cancel()

	rows, err := x.db.QueryContext(ctx, primaryKeysQuery, pq.Array(x.opts.schemas))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			schema, table, column string
			pos                   int
		)
		if err := rows.Scan(&schema, &table, &column, &pos); err != nil {
			return err
		}
		t := findTable(tables, dbmd.RelID{Schema: schema, Name: table})
		if t == nil {
			continue
		}
		if c, ok := t.Column(column); ok {
			c.PrimaryKeyPart = pos
		}
	}
	return rows.Err()
}

func (x *extractor) foreignKeys(ctx context.Context, tables []dbmd.Table) ([]dbmd.ForeignKey, error) {
	ctx, cancel := x.withTimeout(ctx)
	defer cancel()

	rows, err := x.db.QueryContext(ctx, foreignKeysQuery, pq.Array(x.opts.schemas))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []dbmd.ForeignKey
	for rows.Next() {
		var (
			name                      string
			childSchema, childTable   string
			parentSchema, parentTable string
			childColumn, parentColumn string
		)
		if err := rows.Scan(&name, &childSchema, &childTable, &parentSchema, &parentTable,
			&childColumn, &parentColumn); err != nil {
			return nil, err
		}
		child := dbmd.RelID{Schema: childSchema, Name: childTable}
		parent := dbmd.RelID{Schema: parentSchema, Name: parentTable}
		comp := dbmd.ForeignKeyComponent{Child: childColumn, Parent: parentColumn}

		if n := len(fks); n > 0 && fks[n-1].Name == name && fks[n-1].Child == child {
			fks[n-1].Components = append(fks[n-1].Components, comp)
			continue
		}
		fks = append(fks, dbmd.ForeignKey{Name: name, Child: child, Parent: parent,
			Components: []dbmd.ForeignKeyComponent{comp}})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return slices.DeleteFunc(fks, func(fk dbmd.ForeignKey) bool {
		if findTable(tables, fk.Child) != nil && findTable(tables, fk.Parent) != nil {
			return false
		}
		x.opts.logger.Debug("skipping foreign key to table outside snapshot",
			"constraint", fk.Name, "child", fk.Child.String(), "parent", fk.Parent.String())
		return true
	}), nil
}

func findTable(tables []dbmd.Table, id dbmd.RelID) *dbmd.Table {
	for i := range tables {
		if tables[i].ID == id {
			return &tables[i]
		}
	}
	return nil
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// FromConnectionString connects with the lib/pq driver and introspects the
// database. This is a convenience function that handles connection
// management.
func FromConnectionString(ctx context.Context, connStr string, opts ...Option) (*dbmd.Schema, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return Database(ctx, db, opts...)
}
