package introspect

import (
	"strings"

	"github.com/pthm/sqljson/pkg/dbmd"
)

// TypeMapper classifies PostgreSQL column types into metadata type tags.
// Implement this interface to customize type mapping behavior.
type TypeMapper interface {
	// MapType converts a column type to a tag.
	// dataType is the information_schema data type (e.g., "integer",
	// "character varying"), udtName the underlying type name (e.g., "int4").
	MapType(dataType, udtName string) dbmd.TypeTag
}

// PostgreSQLTypeMapper provides the default PostgreSQL classification with
// optional overrides.
type PostgreSQLTypeMapper struct {
	// CustomMappings overrides default mappings. Keys are PostgreSQL type
	// names (case-insensitive), matched against the data type first and the
	// udt name second.
	CustomMappings map[string]dbmd.TypeTag
}

// NewPostgreSQLTypeMapper creates a TypeMapper with optional custom mappings.
//
// Example:
//
//	mapper := introspect.NewPostgreSQLTypeMapper(map[string]dbmd.TypeTag{
//	    "citext": dbmd.TypeVarchar,
//	})
func NewPostgreSQLTypeMapper(customMappings map[string]dbmd.TypeTag) *PostgreSQLTypeMapper {
	return &PostgreSQLTypeMapper{CustomMappings: customMappings}
}

// MapType implements TypeMapper.
func (m *PostgreSQLTypeMapper) MapType(dataType, udtName string) dbmd.TypeTag {
	if m.CustomMappings != nil {
		if tag, ok := m.CustomMappings[strings.ToLower(dataType)]; ok {
			return tag
		}
		if tag, ok := m.CustomMappings[strings.ToLower(udtName)]; ok {
			return tag
		}
	}
	return MapPostgreSQLType(dataType, udtName)
}

// DefaultTypeMappings lists the PostgreSQL type names with a specific tag.
// Every other type maps to dbmd.TypeOther.
var DefaultTypeMappings = map[string]dbmd.TypeTag{
	"smallint":                    dbmd.TypeInteger,
	"int2":                        dbmd.TypeInteger,
	"integer":                     dbmd.TypeInteger,
	"int4":                        dbmd.TypeInteger,
	"bigint":                      dbmd.TypeInteger,
	"int8":                        dbmd.TypeInteger,
	"numeric":                     dbmd.TypeDecimal,
	"decimal":                     dbmd.TypeDecimal,
	"real":                        dbmd.TypeDecimal,
	"float4":                      dbmd.TypeDecimal,
	"double precision":            dbmd.TypeDecimal,
	"float8":                      dbmd.TypeDecimal,
	"character":                   dbmd.TypeChar,
	"char":                        dbmd.TypeChar,
	"bpchar":                      dbmd.TypeChar,
	"character varying":           dbmd.TypeVarchar,
	"varchar":                     dbmd.TypeVarchar,
	"text":                        dbmd.TypeVarchar,
	"timestamp without time zone": dbmd.TypeTimestamp,
	"timestamp":                   dbmd.TypeTimestamp,
	"timestamp with time zone":    dbmd.TypeTimestamp,
	"timestamptz":                 dbmd.TypeTimestamp,
	"date":                        dbmd.TypeDate,
	"boolean":                     dbmd.TypeBoolean,
	"bool":                        dbmd.TypeBoolean,
}

// MapPostgreSQLType returns the default tag for a column type.
func MapPostgreSQLType(dataType, udtName string) dbmd.TypeTag {
	if tag, ok := DefaultTypeMappings[strings.ToLower(dataType)]; ok {
		return tag
	}
	// "USER-DEFINED" columns are identified by their udt name only.
	if tag, ok := DefaultTypeMappings[strings.ToLower(udtName)]; ok {
		return tag
	}
	return dbmd.TypeOther
}
