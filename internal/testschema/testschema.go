// Package testschema provides database metadata fixtures for tests.
//
// Pharma mirrors test/testutil/testdata/pharma.sql so unit tests and the
// database-backed integration tests agree on the schema.
package testschema

import "github.com/pthm/sqljson/pkg/dbmd"

func intPtr(n int) *int { return &n }

func integer(name string, nullable bool, pkPart int) dbmd.Column {
	return dbmd.Column{
		Name: name, Type: dbmd.TypeInteger, DBType: "int4",
		Precision: intPtr(32), Scale: intPtr(0),
		Nullable: nullable, PrimaryKeyPart: pkPart,
	}
}

func varchar(name string, length int, nullable bool, pkPart int) dbmd.Column {
	return dbmd.Column{
		Name: name, Type: dbmd.TypeVarchar, DBType: "varchar",
		Length: intPtr(length), Nullable: nullable, PrimaryKeyPart: pkPart,
	}
}

func timestamp(name string, nullable bool) dbmd.Column {
	return dbmd.Column{Name: name, Type: dbmd.TypeTimestamp, DBType: "timestamptz", Nullable: nullable}
}

func table(name string, cols ...dbmd.Column) dbmd.Table {
	return dbmd.Table{ID: dbmd.RelID{Schema: "public", Name: name}, Columns: cols}
}

func fk(name, child, parent string, pairs ...string) dbmd.ForeignKey {
	k := dbmd.ForeignKey{
		Name:   name,
		Child:  dbmd.RelID{Schema: "public", Name: child},
		Parent: dbmd.RelID{Schema: "public", Name: parent},
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		k.Components = append(k.Components, dbmd.ForeignKeyComponent{Child: pairs[i], Parent: pairs[i+1]})
	}
	return k
}

// Pharma returns a fresh copy of the drug database metadata.
//
// Relationships worth knowing about in tests:
//   - drug.compound_id -> compound is the only key between those tables
//     and is not nullable
//   - compound has two keys to analyst (entered_by and approved_by), so
//     that relationship needs explicit fields
//   - brand.manufacturer_id -> manufacturer is nullable
//   - drug_reference has a composite primary key and links drug to reference
func Pharma() *dbmd.Schema {
	return &dbmd.Schema{
		Name:            "public",
		CaseSensitivity: dbmd.InsensitiveStoredLower,
		DBMSName:        "PostgreSQL",
		DBMSVersion:     "18.0",
		Tables: []dbmd.Table{
			table("analyst",
				integer("id", false, 1),
				varchar("short_name", 50, false, 0),
			),
			table("compound",
				integer("id", false, 1),
				varchar("display_name", 50, true, 0),
				varchar("nctr_isis_id", 100, true, 0),
				varchar("cas", 50, true, 0),
				dbmd.Column{Name: "mol_weight", Type: dbmd.TypeDecimal, DBType: "numeric", Nullable: true},
				timestamp("entered", true),
				integer("entered_by", false, 0),
				integer("approved_by", true, 0),
			),
			table("drug",
				integer("id", false, 1),
				varchar("name", 500, false, 0),
				integer("compound_id", false, 0),
				varchar("mesh_id", 7, true, 0),
				integer("cid", true, 0),
				varchar("therapeutic_indications", 4000, true, 0),
				timestamp("registered", true),
				integer("registered_by", false, 0),
				dbmd.Column{Name: "market_entry_date", Type: dbmd.TypeDate, DBType: "date", Nullable: true},
			),
			table("manufacturer",
				integer("id", false, 1),
				varchar("name", 200, false, 0),
			),
			table("brand",
				integer("drug_id", false, 1),
				varchar("brand_name", 200, false, 2),
				varchar("language_code", 10, true, 0),
				integer("manufacturer_id", true, 0),
			),
			table("authority",
				integer("id", false, 1),
				varchar("name", 200, false, 0),
				varchar("url", 500, true, 0),
				varchar("description", 2000, true, 0),
			),
			table("advisory_type",
				integer("id", false, 1),
				varchar("name", 50, false, 0),
				integer("authority_id", false, 0),
			),
			table("advisory",
				integer("id", false, 1),
				integer("drug_id", false, 0),
				integer("advisory_type_id", false, 0),
				varchar("text", 2000, false, 0),
			),
			table("reference",
				integer("id", false, 1),
				varchar("publication", 2000, false, 0),
			),
			table("drug_reference",
				integer("drug_id", false, 1),
				integer("reference_id", false, 2),
				integer("priority", true, 0),
			),
		},
		ForeignKeys: []dbmd.ForeignKey{
			fk("compound_entered_by_fk", "compound", "analyst", "entered_by", "id"),
			fk("compound_approved_by_fk", "compound", "analyst", "approved_by", "id"),
			fk("drug_compound_fk", "drug", "compound", "compound_id", "id"),
			fk("drug_registered_by_fk", "drug", "analyst", "registered_by", "id"),
			fk("brand_drug_fk", "brand", "drug", "drug_id", "id"),
			fk("brand_manufacturer_fk", "brand", "manufacturer", "manufacturer_id", "id"),
			fk("advisory_type_authority_fk", "advisory_type", "authority", "authority_id", "id"),
			fk("advisory_drug_fk", "advisory", "drug", "drug_id", "id"),
			fk("advisory_advisory_type_fk", "advisory", "advisory_type", "advisory_type_id", "id"),
			fk("drug_reference_drug_fk", "drug_reference", "drug", "drug_id", "id"),
			fk("drug_reference_reference_fk", "drug_reference", "reference", "reference_id", "id"),
		},
	}
}
