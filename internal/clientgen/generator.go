// Package clientgen provides a registry of language-specific result type
// renderers.
//
// A renderer turns the result type tree of one query into source files
// declaring those types. Renderers return a file map so that languages can
// choose their own layout (a Go package directory, a single TypeScript
// module).
//
// This is an internal package used by the sqljson CLI. For programmatic
// rendering, use pkg/clientgen which provides a stable public API.
package clientgen

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"

	"github.com/pthm/sqljson/internal/resulttype"
	"github.com/pthm/sqljson/pkg/dbmd"
)

// Generator renders result types for one language.
//
// Implementations should be registered via Register() in their init() function.
// The CLI uses the registry to dispatch rendering based on the --runtime flag.
type Generator interface {
	// Name returns the runtime identifier ("go", "typescript", "python").
	Name() string

	// Generate returns a map of filename -> content for the query's types.
	// The filenames are relative paths; the caller decides where they go.
	Generate(tree *resulttype.Tree, cfg *Config) (map[string][]byte, error)

	// DefaultConfig returns the default configuration for this generator.
	DefaultConfig() *Config
}

// RelationsGenerator is implemented by generators that can render database
// metadata as table and column declarations.
type RelationsGenerator interface {
	GenerateRelations(s *dbmd.Schema, cfg *Config) (map[string][]byte, error)
}

// StatementGenerator is implemented by generators that can render the SQL
// resource name and parameter names of a modification statement.
type StatementGenerator interface {
	GenerateStatement(st *Statement, cfg *Config) (map[string][]byte, error)
}

// Statement describes a generated SQL statement for StatementGenerator.
type Statement struct {
	Name string
	// SQLResource is the file name the statement's SQL is written to.
	SQLResource string
	// Params lists parameter names in statement order. A name can repeat
	// when the statement binds a numbered parameter more than once.
	Params   []string
	Numbered bool
}

// Param is a distinct statement parameter.
type Param struct {
	Name string
	// Position is the 1-based position of the first use.
	Position int
}

// DistinctParams returns each parameter once, in first-use order.
func (st *Statement) DistinctParams() []Param {
	var out []Param
	seen := make(map[string]bool, len(st.Params))
	for i, p := range st.Params {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, Param{Name: p, Position: i + 1})
	}
	return out
}

// Config holds language-agnostic rendering options.
type Config struct {
	// Package is the package or module name for generated code. Empty means
	// a name derived from the query name.
	Package string

	// Header is copied to the top of every generated file, as comment lines.
	Header string

	// Options holds language-specific configuration.
	// Each generator documents its supported options.
	Options map[string]any
}

// HeaderLines splits Header into comment lines without their comment
// markers, so each renderer can apply its own.
func (c *Config) HeaderLines() []string {
	if c == nil || strings.TrimSpace(c.Header) == "" {
		return nil
	}
	lines := strings.Split(strings.TrimRight(c.Header, "\n"), "\n")
	for i, l := range lines {
		l = strings.TrimSpace(l)
		for _, marker := range []string{"//", "#"} {
			l = strings.TrimPrefix(l, marker)
		}
		lines[i] = strings.TrimSpace(l)
	}
	return lines
}

// registry maps runtime names to generators.
var registry = make(map[string]Generator)

// Register adds a generator to the global registry.
// Generators should call this from their init() function.
//
// Panics if a generator with the same name is already registered.
func Register(g Generator) {
	name := g.Name()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("clientgen: generator %q already registered", name))
	}
	registry[name] = g
}

// Get returns the generator for the given runtime name.
// Returns nil if no generator is registered for that name.
func Get(name string) Generator {
	return registry[name]
}

// List returns all registered generator names, sorted.
func List() []string {
	return slices.Sorted(maps.Keys(registry))
}

// Registered returns true if a generator is registered for the given name.
func Registered(name string) bool {
	_, ok := registry[name]
	return ok
}

// SnakeCase turns a query name such as "drugsWithBrands" or "drug-list"
// into "drugs_with_brands" / "drug_list", for file and module names.
func SnakeCase(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevLower = true
		default:
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			prevLower = false
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" || unicode.IsDigit(rune(out[0])) {
		out = "q_" + out
	}
	return out
}
