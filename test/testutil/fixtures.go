package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Fixtures inserts drug data into a database created by DB.
type Fixtures struct {
	db  *sql.DB
	ctx context.Context
}

// NewFixtures creates a new Fixtures instance.
func NewFixtures(ctx context.Context, db *sql.DB) *Fixtures {
	return &Fixtures{db: db, ctx: ctx}
}

// Counts records how many rows Seed wrote to the tables that queries nest.
type Counts struct {
	Drugs          int
	Brands         int
	Advisories     int
	DrugReferences int
}

// Seed inserts n drugs with their compounds and the reference data around
// them. The data is deterministic:
//   - every drug has a compound; odd compounds have an approver
//   - even drugs have two brands, the second without a manufacturer
//   - every third drug has an advisory
//   - every drug cites reference (id % 5) + 1, and every fourth drug also
//     cites reference 5 when that differs
//   - drugs without a cid are those with id % 4 = 0
func (f *Fixtures) Seed(n int) (Counts, error) {
	steps := []struct {
		name string
		sql  string
	}{
		{"analysts", `INSERT INTO analyst (id, short_name)
			SELECT i, 'analyst' || i FROM generate_series(1, 3) AS i`},
		{"manufacturers", `INSERT INTO manufacturer (id, name)
			SELECT i, 'Manufacturer ' || i FROM generate_series(1, 2) AS i`},
		{"authorities", `INSERT INTO authority (id, name, url)
			VALUES (1, 'FDA', 'https://www.fda.gov'), (2, 'EMA', NULL)`},
		{"advisory types", `INSERT INTO advisory_type (id, name, authority_id)
			VALUES (1, 'Boxed Warning', 1), (2, 'Caution', 1), (3, 'Safety Notice', 2)`},
		{"references", `INSERT INTO reference (id, publication)
			SELECT i, 'Publication ' || i FROM generate_series(1, 5) AS i`},
		{"compounds", `INSERT INTO compound (id, display_name, cas, mol_weight, entered, entered_by, approved_by)
			SELECT i, 'Compound ' || i, '50-00-' || i, i * 10.5, now(), (i % 3) + 1,
			       CASE WHEN i % 2 = 1 THEN ((i + 1) % 3) + 1 END
			FROM generate_series(1, $1::int) AS i`},
		{"drugs", `INSERT INTO drug (id, name, compound_id, mesh_id, cid, registered_by, market_entry_date)
			SELECT i, 'Drug ' || i, i, 'D' || lpad(i::text, 6, '0'),
			       CASE WHEN i % 4 <> 0 THEN i * 100 END, (i % 3) + 1, DATE '2020-01-01' + i
			FROM generate_series(1, $1::int) AS i`},
		{"brands", `INSERT INTO brand (drug_id, brand_name, language_code, manufacturer_id)
			SELECT i, b.name, 'en', b.manufacturer_id
			FROM generate_series(1, $1::int) AS i
			CROSS JOIN (VALUES ('Brand A', 1), ('Brand B', NULL)) AS b(name, manufacturer_id)
			WHERE i % 2 = 0`},
		{"advisories", `INSERT INTO advisory (id, drug_id, advisory_type_id, text)
			SELECT i, i, (i % 3) + 1, 'Advisory for drug ' || i
			FROM generate_series(1, $1::int) AS i
			WHERE i % 3 = 0`},
		{"drug references", `INSERT INTO drug_reference (drug_id, reference_id, priority)
			SELECT i, (i % 5) + 1, 1 FROM generate_series(1, $1::int) AS i
			UNION ALL
			SELECT i, 5, 2 FROM generate_series(1, $1::int) AS i
			WHERE i % 4 = 0 AND (i % 5) + 1 <> 5`},
	}

	for _, s := range steps {
		var args []any
		if strings.Contains(s.sql, "$1") {
			args = append(args, n)
		}
		if _, err := f.db.ExecContext(f.ctx, s.sql, args...); err != nil {
			return Counts{}, fmt.Errorf("insert %s: %w", s.name, err)
		}
	}

	var c Counts
	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"drug", &c.Drugs},
		{"brand", &c.Brands},
		{"advisory", &c.Advisories},
		{"drug_reference", &c.DrugReferences},
	} {
		if err := f.db.QueryRowContext(f.ctx, "SELECT count(*) FROM "+q.table).Scan(q.dst); err != nil {
			return Counts{}, fmt.Errorf("count %s: %w", q.table, err)
		}
	}
	return c, nil
}
