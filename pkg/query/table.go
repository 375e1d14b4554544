package query

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AliasVar is the default placeholder for a table alias in SQL fragments.
const AliasVar = "$$"

// TableJSON describes the JSON object produced for each row of one table.
type TableJSON struct {
	Table             string             `json:"table"`
	Fields            []Field            `json:"fieldExpressions,omitempty"`
	InlineParents     []InlineParent     `json:"inlineParentTables,omitempty"`
	ReferencedParents []ReferencedParent `json:"referencedParentTables,omitempty"`
	ChildCollections  []ChildCollection  `json:"childTableCollections,omitempty"`
	RecordCondition   *RecordCondition   `json:"recordCondition,omitempty"`
}

// Field is one output field: either a column of the table or an arbitrary
// SQL expression.
type Field struct {
	Column     string `json:"field,omitempty"`
	Expression string `json:"expression,omitempty"`
	// TableAliasVar replaces "$$" as the alias placeholder in Expression.
	TableAliasVar string `json:"withTableAliasAs,omitempty"`
	// Name is the output name. Required for expressions; derived from the
	// column name per FieldNaming otherwise.
	Name string `json:"jsonProperty,omitempty"`
	// TypeOverride is used verbatim as the field's type in rendered sources.
	TypeOverride string `json:"fieldTypeInGeneratedSource,omitempty"`
	// Nullable overrides the nullability of an expression, which is
	// otherwise considered nullable. For a column it can only add
	// nullability to a non-null column.
	Nullable *bool `json:"nullable,omitempty"`
}

type fieldFields Field

// UnmarshalJSON accepts either a bare column name or a field object.
func (f *Field) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		var col string
		if err := json.Unmarshal(data, &col); err != nil {
			return err
		}
		*f = Field{Column: col}
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode((*fieldFields)(f))
}

// MarshalJSON writes plain column fields in their short form.
func (f Field) MarshalJSON() ([]byte, error) {
	if f.Column != "" && f == (Field{Column: f.Column}) {
		return json.Marshal(f.Column)
	}
	return json.Marshal(fieldFields(f))
}

// Placeholder returns the alias placeholder used in the field's expression.
func (f *Field) Placeholder() string {
	if f.TableAliasVar != "" {
		return f.TableAliasVar
	}
	return AliasVar
}

// FieldPair equates a child-table expression with a parent-table
// expression in a custom join.
type FieldPair struct {
	Child  string `json:"childField"`
	Parent string `json:"parentField"`
}

// CustomJoin joins a parent and child table without consulting foreign keys.
type CustomJoin struct {
	Pairs []FieldPair `json:"equatedFields"`
}

// RecordCondition restricts the rows of a table.
type RecordCondition struct {
	// SQL is a boolean expression. "$$" (or TableAliasVar) stands for the
	// table alias.
	SQL string `json:"sql"`
	// ParamNames lists the parameters referenced in SQL, which are passed
	// through for the caller to bind.
	ParamNames    []string `json:"paramNames,omitempty"`
	TableAliasVar string   `json:"withTableAliasAs,omitempty"`
}

// Placeholder returns the alias placeholder used in the condition.
func (c *RecordCondition) Placeholder() string {
	if c.TableAliasVar != "" {
		return c.TableAliasVar
	}
	return AliasVar
}

// InlineParent is a parent table whose fields are merged into the child's
// object.
type InlineParent struct {
	Table            TableJSON   `json:"tableJson"`
	ForeignKeyFields []string    `json:"viaForeignKeyFields,omitempty"`
	CustomJoin       *CustomJoin `json:"customJoinCondition,omitempty"`
	// Optional declares that a parent row may be missing even when the
	// foreign key columns are not nullable.
	Optional bool `json:"optional,omitempty"`
}

// ReferencedParent is a parent table nested under a field of the child's
// object.
type ReferencedParent struct {
	Name             string      `json:"referenceName"`
	Table            TableJSON   `json:"tableJson"`
	ForeignKeyFields []string    `json:"viaForeignKeyFields,omitempty"`
	CustomJoin       *CustomJoin `json:"customJoinCondition,omitempty"`
	Optional         bool        `json:"optional,omitempty"`
}

// ChildCollection is a child table nested as an array under a field of the
// parent's object.
type ChildCollection struct {
	Name             string      `json:"collectionName"`
	Table            TableJSON   `json:"tableJson"`
	ForeignKeyFields []string    `json:"foreignKeyFields,omitempty"`
	CustomJoin       *CustomJoin `json:"customJoinCondition,omitempty"`
	// Filter is an additional condition on child rows, with "$$" standing
	// for the child table alias.
	Filter string `json:"filter,omitempty"`
	// Unwrap renders the array elements as bare values. The child must
	// have exactly one field.
	Unwrap bool `json:"unwrap,omitempty"`
	// OrderBy orders the array elements, with "$$" standing for the child
	// table alias.
	OrderBy string `json:"orderBy,omitempty"`
}

// NestKind distinguishes how a related table appears in the output.
type NestKind int

const (
	// Flatten merges the related table's fields into the current object.
	Flatten NestKind = iota
	// Object nests the related row as a single object.
	Object
	// Array nests the related rows as an array.
	Array
)

func (k NestKind) String() string {
	switch k {
	case Flatten:
		return "inline parent"
	case Object:
		return "referenced parent"
	case Array:
		return "child collection"
	default:
		return fmt.Sprintf("NestKind(%d)", int(k))
	}
}

// Nested is the common shape of the three relation kinds.
type Nested struct {
	Kind NestKind
	// Name is the output field; empty for Flatten.
	Name             string
	Table            *TableJSON
	ForeignKeyFields []string
	CustomJoin       *CustomJoin
	Optional         bool
	Filter           string
	OrderBy          string
	Unwrap           bool
}

// IsParent reports whether the related table is the referenced side of the
// join.
func (n *Nested) IsParent() bool {
	return n.Kind != Array
}

// Describe names the relation for diagnostics.
func (n *Nested) Describe() string {
	switch n.Kind {
	case Flatten:
		return fmt.Sprintf("inline parent '%s'", n.Table.Table)
	case Object:
		return fmt.Sprintf("parent '%s' as '%s'", n.Table.Table, n.Name)
	default:
		return fmt.Sprintf("collection '%s'", n.Name)
	}
}

// Nested returns the table's relations: inline parents, then referenced
// parents, then child collections, each in declaration order.
func (t *TableJSON) Nested() []Nested {
	out := make([]Nested, 0, len(t.InlineParents)+len(t.ReferencedParents)+len(t.ChildCollections))
	for i := range t.InlineParents {
		p := &t.InlineParents[i]
		out = append(out, Nested{
			Kind:             Flatten,
			Table:            &p.Table,
			ForeignKeyFields: p.ForeignKeyFields,
			CustomJoin:       p.CustomJoin,
			Optional:         p.Optional,
		})
	}
	for i := range t.ReferencedParents {
		p := &t.ReferencedParents[i]
		out = append(out, Nested{
			Kind:             Object,
			Name:             p.Name,
			Table:            &p.Table,
			ForeignKeyFields: p.ForeignKeyFields,
			CustomJoin:       p.CustomJoin,
			Optional:         p.Optional,
		})
	}
	for i := range t.ChildCollections {
		c := &t.ChildCollections[i]
		out = append(out, Nested{
			Kind:             Array,
			Name:             c.Name,
			Table:            &c.Table,
			ForeignKeyFields: c.ForeignKeyFields,
			CustomJoin:       c.CustomJoin,
			Filter:           c.Filter,
			OrderBy:          c.OrderBy,
			Unwrap:           c.Unwrap,
		})
	}
	return out
}
