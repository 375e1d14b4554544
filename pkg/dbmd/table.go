package dbmd

import (
	"fmt"
	"slices"
)

// RelID identifies a table or view. Schema is empty for databases or
// snapshots that do not qualify relation names.
type RelID struct {
	Schema string `json:"schema,omitempty"`
	Name   string `json:"name"`
}

// String returns the dotted form, e.g. "public.drug".
func (r RelID) String() string {
	if r.Schema == "" {
		return r.Name
	}
	return r.Schema + "." + r.Name
}

// TypeTag is the database-independent kind of a column's values.
type TypeTag string

// Supported type tags. Anything that does not map cleanly onto one of the
// named kinds is TypeOther.
const (
	TypeInteger   TypeTag = "integer"
	TypeDecimal   TypeTag = "decimal"
	TypeChar      TypeTag = "char"
	TypeVarchar   TypeTag = "varchar"
	TypeTimestamp TypeTag = "timestamp"
	TypeDate      TypeTag = "date"
	TypeBoolean   TypeTag = "boolean"
	TypeOther     TypeTag = "other"
)

// IsText reports whether values of this kind are character strings.
func (t TypeTag) IsText() bool {
	return t == TypeChar || t == TypeVarchar
}

// IsNumeric reports whether values of this kind are numbers.
func (t TypeTag) IsNumeric() bool {
	return t == TypeInteger || t == TypeDecimal
}

// Column describes one table column.
type Column struct {
	Name string `json:"name"`
	Type TypeTag `json:"type"`
	// DBType is the database's own type name, e.g. "int8" or "varchar".
	DBType    string `json:"dbType,omitempty"`
	Length    *int   `json:"length,omitempty"`
	Precision *int   `json:"precision,omitempty"`
	Scale     *int   `json:"scale,omitempty"`
	Nullable  bool   `json:"nullable"`
	// PrimaryKeyPart is the 1-based position of the column in the primary
	// key, or 0 when the column is not part of it.
	PrimaryKeyPart int `json:"primaryKeyPart,omitempty"`
}

// Table is a table or view with its columns in declaration order.
type Table struct {
	ID      RelID    `json:"id"`
	Columns []Column `json:"columns"`
}

// Column returns the column with the given (already normalized) name.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// PrimaryKey returns the primary key columns ordered by key position.
func (t *Table) PrimaryKey() []*Column {
	var pk []*Column
	for i := range t.Columns {
		if t.Columns[i].PrimaryKeyPart > 0 {
			pk = append(pk, &t.Columns[i])
		}
	}
	slices.SortFunc(pk, func(a, b *Column) int { return a.PrimaryKeyPart - b.PrimaryKeyPart })
	return pk
}

func (t *Table) validate() error {
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("table %s: column without a name", t.ID)
		}
		if seen[c.Name] {
			return fmt.Errorf("table %s: duplicate column %q", t.ID, c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}
