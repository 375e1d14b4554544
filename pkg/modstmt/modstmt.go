// Package modstmt defines and generates modification statements: INSERT,
// UPDATE and DELETE statements for single tables, checked against the same
// database metadata as queries.
//
// A statement names its target fields, each with a value expression, and
// for UPDATE and DELETE a list of field conditions that compare a column
// with a parameter. Generation reports the parameters in the order the
// statement expects them, so callers can bind positional parameters too.
//
//	g, _ := modstmt.LoadGroup("statements.yaml")
//	res, _ := modstmt.Generate(ctx, schema, g)
//	st, _ := res.Statement("updateDrugName")
//	fmt.Println(st.SQL, st.Params())
package modstmt

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/pthm/sqljson/pkg/query"
)

// Command is the kind of modification.
type Command string

const (
	Insert Command = "INSERT"
	Update Command = "UPDATE"
	Delete Command = "DELETE"
)

// ParamStyle is how parameters are written in generated SQL.
type ParamStyle string

const (
	// Named parameters are written :name.
	Named ParamStyle = "NAMED"
	// Numbered parameters are written ? and bound by position.
	Numbered ParamStyle = "NUMBERED"
)

// Operator compares a field with its condition parameter.
type Operator string

const (
	OpEq Operator = "EQ"
	OpLt Operator = "LT"
	OpLe Operator = "LE"
	OpGt Operator = "GT"
	OpGe Operator = "GE"
	OpIn Operator = "IN"

	// OpEqIfParamNonNull matches every row when the parameter is null.
	OpEqIfParamNonNull Operator = "EQ_IF_PARAM_NONNULL"
	// OpJSONContains tests JSON containment (PostgreSQL only).
	OpJSONContains     Operator = "JSON_CONTAINS"
)

var (
	commands    = []Command{Insert, Update, Delete}
	paramStyles = []ParamStyle{Named, Numbered}
	operators   = []Operator{OpEq, OpLt, OpLe, OpGt, OpGe, OpIn, OpEqIfParamNonNull, OpJSONContains}
)

// TargetField assigns a value to one column.
type TargetField struct {
	Field string `json:"field"`
	// Value is a SQL expression. Empty means a parameter named after the
	// field: :fieldName, or ? for numbered parameters.
	Value string `json:"value,omitempty"`
	// ParamNames lists the parameters used in a Value expression that is
	// not a single parameter.
	ParamNames []string `json:"paramNames,omitempty"`
}

// FieldCondition restricts the affected rows by comparing a field with a
// parameter.
type FieldCondition struct {
	Field string `json:"field"`
	// Op defaults to OpEq.
	Op Operator `json:"op,omitempty"`
	// ParamName defaults to the camel-cased field name plus "Cond".
	ParamName string `json:"paramName,omitempty"`
}

// Spec defines one modification statement.
type Spec struct {
	Name    string  `json:"statementName"`
	Command Command `json:"command"`
	// Table may be schema-qualified.
	Table      string        `json:"table"`
	TableAlias string        `json:"tableAlias,omitempty"`
	Fields     []TargetField `json:"targetFields,omitempty"`
	// ParamStyle defaults to Named.
	ParamStyle ParamStyle `json:"parametersType,omitempty"`
	// GenerateSource controls whether parameter declarations are rendered.
	// Defaults to true.
	GenerateSource *bool            `json:"generateSourceCode,omitempty"`
	Conditions     []FieldCondition `json:"fieldParamConditions,omitempty"`
	// RecordCondition is ANDed with the field conditions. Its placeholder
	// stands for the table alias, or the table name without one.
	RecordCondition *query.RecordCondition `json:"recordCondition,omitempty"`
}

// Style returns the parameter style with the default applied.
func (s *Spec) Style() ParamStyle {
	if s.ParamStyle == "" {
		return Named
	}
	return canonical(s.ParamStyle, paramStyles)
}

// ShouldGenerateSource reports whether parameter declarations are wanted.
func (s *Spec) ShouldGenerateSource() bool {
	return s.GenerateSource == nil || *s.GenerateSource
}

// Validate checks the statement's enumerations and the clauses its
// command allows. Table and field names are checked during generation.
func (s *Spec) Validate() error {
	cmd, ok := parse(s.Command, commands)
	if !ok {
		return fmt.Errorf("unknown command %q", s.Command)
	}
	if s.ParamStyle != "" {
		if _, ok := parse(s.ParamStyle, paramStyles); !ok {
			return fmt.Errorf("unknown parameters type %q", s.ParamStyle)
		}
	}
	for _, c := range s.Conditions {
		if c.Op == "" {
			continue
		}
		if _, ok := parse(c.Op, operators); !ok {
			return fmt.Errorf("field condition on %q: unknown operator %q", c.Field, c.Op)
		}
	}
	switch cmd {
	case Insert:
		switch {
		case s.TableAlias != "":
			return fmt.Errorf("a table alias is not allowed in an INSERT statement")
		case len(s.Conditions) > 0:
			return fmt.Errorf("field conditions are not allowed in an INSERT statement")
		case s.RecordCondition != nil:
			return fmt.Errorf("a record condition is not allowed in an INSERT statement")
		case len(s.Fields) == 0:
			return fmt.Errorf("an INSERT statement needs at least one target field")
		}
	case Update:
		if len(s.Fields) == 0 {
			return fmt.Errorf("an UPDATE statement needs at least one target field")
		}
	case Delete:
		if len(s.Fields) > 0 {
			return fmt.Errorf("target fields are not allowed in a DELETE statement")
		}
	}
	return nil
}

// Group is a set of statements sharing naming defaults.
type Group struct {
	// DefaultSchema qualifies table names written without a schema.
	DefaultSchema string `json:"defaultSchema,omitempty"`
	// UnqualifiedSchemas lists schemas whose tables are written without a
	// schema prefix in generated SQL.
	UnqualifiedSchemas []string `json:"generateUnqualifiedNamesForSchemas,omitempty"`
	Statements         []Spec   `json:"modificationStatementSpecs"`
}

// Statement returns the statement with the given name.
func (g *Group) Statement(name string) (*Spec, bool) {
	for i := range g.Statements {
		if g.Statements[i].Name == name {
			return &g.Statements[i], true
		}
	}
	return nil, false
}

// Validate checks that statement names are present and unique. Settings of
// single statements are checked by Spec.Validate.
func (g *Group) Validate() error {
	seen := make(map[string]bool, len(g.Statements))
	for i := range g.Statements {
		s := &g.Statements[i]
		if s.Name == "" {
			return fmt.Errorf("statement %d has no name", i+1)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate statement name %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// LoadGroup reads a statement group document (YAML or JSON) from path.
func LoadGroup(path string) (*Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading statement file: %w", err)
	}
	g, err := ParseGroup(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// ParseGroup decodes a statement group document and validates it. Unknown
// keys are rejected.
func ParseGroup(data []byte) (*Group, error) {
	var g Group
	if err := yaml.UnmarshalStrict(data, &g); err != nil {
		return nil, fmt.Errorf("parsing statement group: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// MarshalGroup encodes a statement group as YAML.
func MarshalGroup(g *Group) ([]byte, error) {
	return yaml.Marshal(g)
}

// UnmarshalJSON stores known commands in canonical form.
func (c *Command) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, c, commands)
}

// UnmarshalJSON stores known parameter styles in canonical form.
func (p *ParamStyle) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, p, paramStyles)
}

// UnmarshalJSON stores known operators in canonical form.
func (o *Operator) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, o, operators)
}

func unmarshalEnum[T ~string](data []byte, dst *T, known []T) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*dst = canonical(T(s), known)
	return nil
}

// parse matches v against known in any case, with dashes or underscores.
func parse[T ~string](v T, known []T) (T, bool) {
	norm := T(strings.ToUpper(strings.ReplaceAll(string(v), "-", "_")))
	for _, k := range known {
		if k == norm {
			return k, true
		}
	}
	return v, false
}

func canonical[T ~string](v T, known []T) T {
	c, _ := parse(v, known)
	return c
}
