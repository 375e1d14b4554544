package query

// TablePart adds fields, relations or a condition to a TableJSON.
type TablePart func(*TableJSON)

// RelationOption configures how a nested table is joined.
type RelationOption func(*Nested)

// QueryOption configures a Query.
type QueryOption func(*Query)

// Table builds the object definition for one table.
func Table(name string, parts ...TablePart) TableJSON {
	t := TableJSON{Table: name}
	for _, p := range parts {
		p(&t)
	}
	return t
}

// Cols adds column fields named after their columns.
func Cols(columns ...string) TablePart {
	return func(t *TableJSON) {
		for _, c := range columns {
			t.Fields = append(t.Fields, Field{Column: c})
		}
	}
}

// ColAs adds a column field with an explicit output name.
func ColAs(column, name string) TablePart {
	return func(t *TableJSON) {
		t.Fields = append(t.Fields, Field{Column: column, Name: name})
	}
}

// Add appends fully specified fields.
func Add(fields ...Field) TablePart {
	return func(t *TableJSON) {
		t.Fields = append(t.Fields, fields...)
	}
}

// Expr adds a SQL expression field. typeOverride may be empty.
func Expr(expression, name, typeOverride string) TablePart {
	return Add(Field{Expression: expression, Name: name, TypeOverride: typeOverride})
}

// Where sets the table's record condition.
func Where(sql string, params ...string) TablePart {
	return func(t *TableJSON) {
		t.RecordCondition = &RecordCondition{SQL: sql, ParamNames: params}
	}
}

// Inline adds an inline parent.
func Inline(parent TableJSON, opts ...RelationOption) TablePart {
	return func(t *TableJSON) {
		n := applyRelationOptions(Nested{Kind: Flatten}, opts)
		t.InlineParents = append(t.InlineParents, InlineParent{
			Table:            parent,
			ForeignKeyFields: n.ForeignKeyFields,
			CustomJoin:       n.CustomJoin,
			Optional:         n.Optional,
		})
	}
}

// Ref adds a referenced parent nested under name.
func Ref(name string, parent TableJSON, opts ...RelationOption) TablePart {
	return func(t *TableJSON) {
		n := applyRelationOptions(Nested{Kind: Object}, opts)
		t.ReferencedParents = append(t.ReferencedParents, ReferencedParent{
			Name:             name,
			Table:            parent,
			ForeignKeyFields: n.ForeignKeyFields,
			CustomJoin:       n.CustomJoin,
			Optional:         n.Optional,
		})
	}
}

// Children adds a child collection nested under name.
func Children(name string, child TableJSON, opts ...RelationOption) TablePart {
	return func(t *TableJSON) {
		n := applyRelationOptions(Nested{Kind: Array}, opts)
		t.ChildCollections = append(t.ChildCollections, ChildCollection{
			Name:             name,
			Table:            child,
			ForeignKeyFields: n.ForeignKeyFields,
			CustomJoin:       n.CustomJoin,
			Filter:           n.Filter,
			Unwrap:           n.Unwrap,
			OrderBy:          n.OrderBy,
		})
	}
}

func applyRelationOptions(n Nested, opts []RelationOption) Nested {
	for _, o := range opts {
		o(&n)
	}
	return n
}

// ViaFields selects the foreign key by its child-side columns.
func ViaFields(columns ...string) RelationOption {
	return func(n *Nested) { n.ForeignKeyFields = columns }
}

// JoinOn joins on explicit expression pairs instead of a foreign key.
func JoinOn(pairs ...FieldPair) RelationOption {
	return func(n *Nested) { n.CustomJoin = &CustomJoin{Pairs: pairs} }
}

// Optional marks a parent relation as possibly absent.
func Optional() RelationOption {
	return func(n *Nested) { n.Optional = true }
}

// Filtered restricts the rows of a child collection.
func Filtered(sql string) RelationOption {
	return func(n *Nested) { n.Filter = sql }
}

// OrderedBy orders the elements of a child collection.
func OrderedBy(expr string) RelationOption {
	return func(n *Nested) { n.OrderBy = expr }
}

// Unwrapped renders a single-field child collection as bare values.
func Unwrapped() RelationOption {
	return func(n *Nested) { n.Unwrap = true }
}

// New builds a query.
func New(name string, table TableJSON, opts ...QueryOption) Query {
	q := Query{Name: name, Table: table}
	for _, o := range opts {
		o(&q)
	}
	return q
}

// WithReprs sets the result representations to generate.
func WithReprs(reprs ...ResultRepr) QueryOption {
	return func(q *Query) { q.Reprs = reprs }
}

// WithFieldNaming overrides the group's field naming.
func WithFieldNaming(n FieldNaming) QueryOption {
	return func(q *Query) { q.FieldNaming = n }
}

// WithOrderBy orders the top-level rows.
func WithOrderBy(expr string) QueryOption {
	return func(q *Query) { q.OrderBy = expr }
}

// WithForUpdate locks the selected rows.
func WithForUpdate() QueryOption {
	return func(q *Query) { q.ForUpdate = true }
}

// WithoutResultTypes skips result type generation for the query.
func WithoutResultTypes() QueryOption {
	return func(q *Query) {
		f := false
		q.GenerateResultTypes = &f
	}
}

// WithoutSource keeps the result types but renders no declarations.
func WithoutSource() QueryOption {
	return func(q *Query) {
		f := false
		q.GenerateSource = &f
	}
}

// WithTypesFileHeader sets text copied to the top of rendered types.
func WithTypesFileHeader(header string) QueryOption {
	return func(q *Query) { q.TypesFileHeader = header }
}
