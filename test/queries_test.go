package test

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/sqljson/internal/testschema"
	"github.com/pthm/sqljson/pkg/compiler"
	"github.com/pthm/sqljson/pkg/dbcheck"
	"github.com/pthm/sqljson/pkg/query"
	"github.com/pthm/sqljson/test/testutil"
)

const seedDrugs = 12

type drugObject struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Compound struct {
		ID        int    `json:"id"`
		EnteredBy string `json:"enteredBy"`
		Approver  *struct {
			ShortName string `json:"shortName"`
		} `json:"approver"`
	} `json:"compound"`
	Brands []struct {
		BrandName    string  `json:"brandName"`
		Manufacturer *string `json:"manufacturer"`
	} `json:"brands"`
	Advisories []struct {
		Text      string `json:"text"`
		Authority string `json:"authority"`
	} `json:"advisories"`
	ReferenceIDs []int `json:"referenceIds"`
}

// drugsQuery exercises every kind of relation: an inline parent, an
// optional referenced parent, child collections with nested parents, and
// an unwrapped child collection.
func drugsQuery() query.Query {
	return query.New("drugs", query.Table("drug",
		query.Cols("id", "name"),
		query.Ref("compound", query.Table("compound",
			query.Cols("id"),
			query.Inline(query.Table("analyst", query.ColAs("short_name", "enteredBy")),
				query.ViaFields("entered_by")),
			query.Ref("approver", query.Table("analyst", query.Cols("short_name")),
				query.ViaFields("approved_by"), query.Optional()),
		)),
		query.Children("brands", query.Table("brand",
			query.Cols("brand_name"),
			query.Inline(query.Table("manufacturer", query.ColAs("name", "manufacturer"))),
		), query.OrderedBy("$$.brandName")),
		query.Children("advisories", query.Table("advisory",
			query.Cols("text"),
			query.Inline(query.Table("advisory_type",
				query.Inline(query.Table("authority", query.ColAs("name", "authority"))),
			)),
		)),
		query.Children("referenceIds", query.Table("drug_reference",
			query.Cols("reference_id"),
		), query.Unwrapped(), query.OrderedBy("$$.referenceId")),
	), query.WithOrderBy("$$.id"),
		query.WithReprs(query.MultiColumnRows, query.JSONObjectRows, query.JSONArrayRow))
}

func generate(t *testing.T, queries ...query.Query) *compiler.Result {
	t.Helper()
	g := &query.Group{DefaultSchema: "public", Queries: queries}
	res, err := compiler.Generate(context.Background(), testschema.Pharma(), g,
		compiler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	require.NoError(t, res.Err())
	return res
}

func seededDB(t *testing.T) (*sql.DB, testutil.Counts) {
	t.Helper()
	db := testutil.DB(t)
	counts, err := testutil.NewFixtures(context.Background(), db).Seed(seedDrugs)
	require.NoError(t, err)
	require.Equal(t, seedDrugs, counts.Drugs)
	return db, counts
}

func jsonObjectRows(t *testing.T, db *sql.DB, stmt string, args ...any) []drugObject {
	t.Helper()
	rows, err := db.QueryContext(context.Background(), stmt, args...)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var out []drugObject
	for rows.Next() {
		var raw []byte
		require.NoError(t, rows.Scan(&raw))
		var d drugObject
		require.NoError(t, json.Unmarshal(raw, &d), "row: %s", raw)
		out = append(out, d)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestRepresentationsAgree(t *testing.T) {
	db, counts := seededDB(t)
	ctx := context.Background()

	q := generate(t, drugsQuery()).Queries[0]
	require.Len(t, q.SQL, 3)

	t.Run("multi column rows", func(t *testing.T) {
		rows, err := db.QueryContext(ctx, q.SQL[query.MultiColumnRows])
		require.NoError(t, err)
		defer func() { _ = rows.Close() }()

		cols, err := rows.Columns()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"id", "name", "compound", "brands", "advisories", "referenceIds"}, cols)

		n := 0
		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			require.NoError(t, rows.Scan(ptrs...))
			n++
		}
		require.NoError(t, rows.Err())
		assert.Equal(t, counts.Drugs, n)
	})

	t.Run("json object rows", func(t *testing.T) {
		drugs := jsonObjectRows(t, db, q.SQL[query.JSONObjectRows])
		require.Len(t, drugs, counts.Drugs)
		assertDrugs(t, drugs, counts)
	})

	t.Run("json array row", func(t *testing.T) {
		var raw []byte
		require.NoError(t, db.QueryRowContext(ctx, q.SQL[query.JSONArrayRow]).Scan(&raw))
		var drugs []drugObject
		require.NoError(t, json.Unmarshal(raw, &drugs))
		require.Len(t, drugs, counts.Drugs)
		assertDrugs(t, drugs, counts)
	})
}

func assertDrugs(t *testing.T, drugs []drugObject, counts testutil.Counts) {
	t.Helper()

	brands, advisories, refs := 0, 0, 0
	for i, d := range drugs {
		assert.Equal(t, i+1, d.ID, "ordered by id")
		assert.Equal(t, d.ID, d.Compound.ID)
		assert.NotEmpty(t, d.Compound.EnteredBy)
		assert.Equal(t, d.Compound.ID%2 == 1, d.Compound.Approver != nil, "drug %d approver", d.ID)
		assert.NotNil(t, d.Brands, "empty collections are arrays")
		assert.NotNil(t, d.ReferenceIDs)

		brands += len(d.Brands)
		advisories += len(d.Advisories)
		refs += len(d.ReferenceIDs)

		if d.ID%2 == 0 {
			require.Len(t, d.Brands, 2)
			assert.Equal(t, "Brand A", d.Brands[0].BrandName)
			require.NotNil(t, d.Brands[0].Manufacturer)
			assert.Equal(t, "Manufacturer 1", *d.Brands[0].Manufacturer)
			assert.Nil(t, d.Brands[1].Manufacturer)
		}
		for _, a := range d.Advisories {
			assert.Contains(t, []string{"FDA", "EMA"}, a.Authority)
		}
		assert.IsIncreasing(t, append([]int{0}, d.ReferenceIDs...))
	}
	assert.Equal(t, counts.Brands, brands)
	assert.Equal(t, counts.Advisories, advisories)
	assert.Equal(t, counts.DrugReferences, refs)
}

func TestRecordConditionParams(t *testing.T) {
	db, _ := seededDB(t)
	ctx := context.Background()

	q := generate(t, query.New("drugsAfterCid", query.Table("drug",
		query.Cols("id", "name"),
		query.Where("$$.cid > :minCid", "minCid"),
	), query.WithOrderBy("$$.id"), query.WithReprs(query.JSONObjectRows))).Queries[0]
	assert.Equal(t, []string{"minCid"}, q.Params)

	var want int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT count(*) FROM drug WHERE cid > 500").Scan(&want))
	require.Positive(t, want)

	stmt := strings.ReplaceAll(q.SQL[query.JSONObjectRows], ":minCid", "$1")
	drugs := jsonObjectRows(t, db, stmt, 500)
	assert.Len(t, drugs, want)
}

func TestEmptyTables(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()

	q := generate(t, drugsQuery()).Queries[0]

	var raw []byte
	require.NoError(t, db.QueryRowContext(ctx, q.SQL[query.JSONArrayRow]).Scan(&raw))
	assert.JSONEq(t, "[]", string(raw))

	assert.Empty(t, jsonObjectRows(t, db, q.SQL[query.JSONObjectRows]))
}

func TestStatementsCheckedAgainstDatabase(t *testing.T) {
	db := testutil.DB(t)

	res := generate(t,
		drugsQuery(),
		query.New("badCondition", query.Table("drug",
			query.Cols("id"),
			query.Where("$$.no_such_column > :limit", "limit"),
		)),
	)

	failures, err := dbcheck.New(db, dbcheck.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))).
		Check(context.Background(), res)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "badCondition", failures[0].Query)
	assert.ErrorContains(t, failures[0], "no_such_column")
}
