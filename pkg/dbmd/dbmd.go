// Package dbmd models the database metadata that query generation is
// checked against: tables, their columns and primary keys, and the foreign
// keys between them.
//
// A Schema is produced once per run, either by pkg/introspect from a live
// database or by loading a snapshot file, and is read-only afterwards. All
// methods are safe for concurrent use.
package dbmd

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/pthm/sqljson"
)

// CaseSensitivity describes how the database treats unquoted identifiers.
type CaseSensitivity string

const (
	// InsensitiveStoredLower folds unquoted names to lower case (PostgreSQL).
	InsensitiveStoredLower CaseSensitivity = "INSENSITIVE_STORED_LOWER"
	// InsensitiveStoredUpper folds unquoted names to upper case (Oracle).
	InsensitiveStoredUpper CaseSensitivity = "INSENSITIVE_STORED_UPPER"
	// InsensitiveStoredMixed matches case-insensitively but keeps the case
	// names were created with.
	InsensitiveStoredMixed CaseSensitivity = "INSENSITIVE_STORED_MIXED"
	// Sensitive compares names exactly.
	Sensitive CaseSensitivity = "SENSITIVE"
)

// Schema is the metadata for one database.
type Schema struct {
	// Name is the schema assumed for unqualified table names when no other
	// default is given.
	Name            string          `json:"name,omitempty"`
	CaseSensitivity CaseSensitivity `json:"caseSensitivity,omitempty"`
	DBMSName        string          `json:"dbmsName,omitempty"`
	DBMSVersion     string          `json:"dbmsVersion,omitempty"`
	Tables          []Table         `json:"tables"`
	ForeignKeys     []ForeignKey    `json:"foreignKeys,omitempty"`

	indexOnce sync.Once
	byID      map[RelID]*Table
	byName    map[string][]*Table
	fksByPair map[[2]RelID][]*ForeignKey
}

func (s *Schema) index() {
	s.indexOnce.Do(func() {
		s.byID = make(map[RelID]*Table, len(s.Tables))
		s.byName = make(map[string][]*Table, len(s.Tables))
		for i := range s.Tables {
			t := &s.Tables[i]
			s.byID[t.ID] = t
			s.byName[t.ID.Name] = append(s.byName[t.ID.Name], t)
		}
		s.fksByPair = make(map[[2]RelID][]*ForeignKey)
		for i := range s.ForeignKeys {
			fk := &s.ForeignKeys[i]
			key := [2]RelID{fk.Child, fk.Parent}
			s.fksByPair[key] = append(s.fksByPair[key], fk)
		}
	})
}

// Sensitivity returns the configured case sensitivity, defaulting to
// InsensitiveStoredLower.
func (s *Schema) Sensitivity() CaseSensitivity {
	if s.CaseSensitivity == "" {
		return InsensitiveStoredLower
	}
	return s.CaseSensitivity
}

// Table returns the table with the given identifier.
func (s *Schema) Table(id RelID) (*Table, bool) {
	s.index()
	t, ok := s.byID[id]
	return t, ok
}

// LookupTable resolves a table name as written in a query definition.
// The name may be schema-qualified and its parts may be quoted. An
// unqualified name is looked up in defaultSchema, then in s.Name, and
// finally matched by bare name when that is unambiguous.
func (s *Schema) LookupTable(name, defaultSchema string) (*Table, bool) {
	s.index()
	id := s.ParseRelID(name, "")
	if id.Schema != "" {
		t, ok := s.byID[id]
		return t, ok
	}
	for _, schema := range []string{defaultSchema, s.Name} {
		if schema == "" {
			continue
		}
		if t, ok := s.byID[RelID{Schema: s.NormalizeName(schema), Name: id.Name}]; ok {
			return t, true
		}
	}
	if ts := s.byName[id.Name]; len(ts) == 1 {
		return ts[0], true
	}
	return nil, false
}

// ParseRelID splits a possibly qualified name into its normalized parts.
// defaultSchema is used when the name carries no schema.
func (s *Schema) ParseRelID(name, defaultSchema string) RelID {
	parts := splitQualified(name)
	if len(parts) == 2 {
		return RelID{Schema: s.NormalizeName(parts[0]), Name: s.NormalizeName(parts[1])}
	}
	id := RelID{Name: s.NormalizeName(name)}
	if defaultSchema != "" {
		id.Schema = s.NormalizeName(defaultSchema)
	}
	return id
}

// ForeignKeysFrom returns the foreign keys declared on child that reference
// parent, in snapshot order.
func (s *Schema) ForeignKeysFrom(child, parent RelID) []*ForeignKey {
	s.index()
	return s.fksByPair[[2]RelID{child, parent}]
}

// NormalizeName converts an identifier as written in SQL into the form the
// database stores. Quoted identifiers lose their quotes and keep their case.
func (s *Schema) NormalizeName(name string) string {
	if isQuoted(name) {
		return strings.ReplaceAll(name[1:len(name)-1], `""`, `"`)
	}
	switch s.Sensitivity() {
	case InsensitiveStoredLower:
		return strings.ToLower(name)
	case InsensitiveStoredUpper:
		return strings.ToUpper(name)
	default:
		return name
	}
}

// QuoteIfNeeded returns name in a form that refers to exactly that
// identifier when written in SQL. Names already quoted are returned as is.
func (s *Schema) QuoteIfNeeded(name string) string {
	if isQuoted(name) || !s.needsQuotes(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *Schema) needsQuotes(name string) bool {
	if name == "" || name[0] == '_' || unicode.IsDigit(rune(name[0])) {
		return true
	}
	for _, r := range name {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return true
		}
	}
	if reservedWords[strings.ToLower(name)] {
		return true
	}
	switch s.Sensitivity() {
	case InsensitiveStoredLower:
		return strings.ToLower(name) != name
	case InsensitiveStoredUpper:
		return strings.ToUpper(name) != name
	case Sensitive:
		return true
	default:
		return false
	}
}

// QualifiedName renders a table reference for SQL text. Tables in one of
// the unqualified schemas are written without their schema.
func (s *Schema) QualifiedName(id RelID, unqualified []string) string {
	if id.Schema == "" {
		return s.QuoteIfNeeded(id.Name)
	}
	for _, u := range unqualified {
		if s.NormalizeName(u) == id.Schema {
			return s.QuoteIfNeeded(id.Name)
		}
	}
	return s.QuoteIfNeeded(id.Schema) + "." + s.QuoteIfNeeded(id.Name)
}

// Validate checks that table identifiers are unique and that every foreign
// key refers to existing tables and columns.
func (s *Schema) Validate() error {
	seen := make(map[RelID]bool, len(s.Tables))
	for i := range s.Tables {
		t := &s.Tables[i]
		if seen[t.ID] {
			return fmt.Errorf("dbmd: duplicate table %s", t.ID)
		}
		seen[t.ID] = true
		if err := t.validate(); err != nil {
			return fmt.Errorf("dbmd: %w", err)
		}
	}
	for i := range s.ForeignKeys {
		fk := &s.ForeignKeys[i]
		if len(fk.Components) == 0 {
			return fmt.Errorf("dbmd: foreign key %q from %s has no columns", fk.Name, fk.Child)
		}
		child, ok := s.Table(fk.Child)
		if !ok {
			return fmt.Errorf("dbmd: foreign key %q: %w", fk.Name, sqljson.NewUnknownTableError(sqljson.Location{}, fk.Child.String()))
		}
		parent, ok := s.Table(fk.Parent)
		if !ok {
			return fmt.Errorf("dbmd: foreign key %q: %w", fk.Name, sqljson.NewUnknownTableError(sqljson.Location{}, fk.Parent.String()))
		}
		for _, c := range fk.Components {
			if _, ok := child.Column(c.Child); !ok {
				return fmt.Errorf("dbmd: foreign key %q: %w", fk.Name,
					sqljson.NewUnknownColumnError(sqljson.Location{}, fk.Child.String(), c.Child))
			}
			if _, ok := parent.Column(c.Parent); !ok {
				return fmt.Errorf("dbmd: foreign key %q: %w", fk.Name,
					sqljson.NewUnknownColumnError(sqljson.Location{}, fk.Parent.String(), c.Parent))
			}
		}
	}
	return nil
}

func isQuoted(name string) bool {
	return len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"'
}

// splitQualified splits "schema.table" on the first dot outside quotes.
func splitQualified(name string) []string {
	inQuotes := false
	for i, r := range name {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == '.' && !inQuotes:
			return []string{name[:i], name[i+1:]}
		}
	}
	return []string{name}
}

// reservedWords are keywords that cannot be used as bare identifiers in
// PostgreSQL or Oracle.
var reservedWords = map[string]bool{
	"all": true, "analyse": true, "analyze": true, "and": true, "any": true,
	"array": true, "as": true, "asc": true, "between": true, "both": true,
	"by": true, "case": true, "cast": true, "check": true, "collate": true,
	"column": true, "constraint": true, "create": true, "current_date": true,
	"current_time": true, "current_timestamp": true, "current_user": true,
	"default": true, "desc": true, "distinct": true, "do": true, "else": true,
	"end": true, "except": true, "false": true, "fetch": true, "for": true,
	"foreign": true, "from": true, "grant": true, "group": true, "having": true,
	"in": true, "index": true, "initially": true, "intersect": true,
	"into": true, "is": true, "join": true, "lateral": true, "leading": true,
	"level": true, "limit": true, "mode": true, "not": true, "null": true,
	"number": true, "of": true, "offset": true, "on": true, "only": true,
	"or": true, "order": true, "placing": true, "primary": true,
	"references": true, "returning": true, "rows": true, "select": true,
	"session_user": true, "size": true, "some": true, "start": true,
	"table": true, "then": true, "to": true, "trailing": true, "true": true,
	"union": true, "unique": true, "user": true, "using": true, "values": true,
	"when": true, "where": true, "window": true, "with": true,
}

// IsReservedWord reports whether name is a keyword that cannot be used as a
// bare identifier.
func IsReservedWord(name string) bool {
	return reservedWords[strings.ToLower(name)]
}
