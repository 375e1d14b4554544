package plan

import (
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"

	"github.com/pthm/sqljson"
	"github.com/pthm/sqljson/pkg/dbmd"
	"github.com/pthm/sqljson/pkg/query"
)

// Type is the value type of a scalar field.
type Type struct {
	Tag       dbmd.TypeTag
	DBType    string
	Length    *int
	Precision *int
	Scale     *int
	// Override is a type written in the query definition for renderers to
	// use verbatim.
	Override string
}

// Field is a resolved scalar field of a node.
type Field struct {
	// Name is the output name.
	Name string
	// Column is set for column fields.
	Column *dbmd.Column
	// Expression and Placeholder are set for expression fields.
	Expression  string
	Placeholder string
	Type        Type
	// Nullable is the final nullability including every optional join on
	// the path from the root.
	Nullable bool
}

func (b *builder) field(tbl *dbmd.Table, f *query.Field, loc sqljson.Location, optional bool) (Field, error) {
	switch {
	case f.Column != "" && f.Expression != "":
		return Field{}, sqljson.NewQueryError(loc, "field %q sets both a column and an expression", f.Column)
	case f.Column == "" && f.Expression == "":
		return Field{}, sqljson.NewQueryError(loc, "field in table '%s' sets neither a column nor an expression", tbl.ID.Name)
	case f.Column != "" && f.TableAliasVar != "":
		return Field{}, sqljson.NewQueryError(loc, "field %q: withTableAliasAs applies only to expressions", f.Column)
	}

	if f.Expression != "" {
		if f.Name == "" {
			return Field{}, sqljson.NewQueryError(loc, "expression %q needs an output name", f.Expression)
		}
		nullable := f.Nullable == nil || *f.Nullable
		return Field{
			Name:        f.Name,
			Expression:  f.Expression,
			Placeholder: f.Placeholder(),
			Type:        Type{Tag: dbmd.TypeOther, Override: f.TypeOverride},
			Nullable:    nullable || optional,
		}, nil
	}

	col, ok := tbl.Column(b.schema.NormalizeName(f.Column))
	if !ok {
		return Field{}, sqljson.NewUnknownColumnError(loc, tbl.ID.String(), f.Column)
	}
	name := f.Name
	if name == "" {
		name = OutputName(col.Name, b.naming)
	}
	// An override can mark a non-null column nullable, never the reverse.
	nullable := col.Nullable || (f.Nullable != nil && *f.Nullable)
	return Field{
		Name:   name,
		Column: col,
		Type: Type{
			Tag:       col.Type,
			DBType:    col.DBType,
			Length:    col.Length,
			Precision: col.Precision,
			Scale:     col.Scale,
			Override:  f.TypeOverride,
		},
		Nullable: nullable || optional,
	}, nil
}

// OutputName derives a field's output name from its column name.
func OutputName(column string, naming query.FieldNaming) string {
	if naming == query.AsInDB {
		return column
	}
	if !strings.ContainsFunc(column, unicode.IsLower) {
		column = strings.ToLower(column)
	}
	return inflect.CamelizeDownFirst(column)
}
