// Package clientgen renders query result types as source code.
//
// This is the public entry point to the renderers used by the sqljson CLI.
// Rendering declares the record shapes a query returns so that application
// code can decode the JSON produced by the generated SQL into typed values:
//
//	res, _ := compiler.Generate(ctx, schema, &group)
//	q, _ := res.Query("drugs")
//	files, err := clientgen.Generate("go", q.Types, &clientgen.Config{
//	    Header: q.TypesFileHeader,
//	})
//
// The returned map holds file contents by relative path. Files should be
// committed to version control alongside the generated SQL.
package clientgen

import (
	"fmt"

	"github.com/pthm/sqljson/internal/clientgen"
	_ "github.com/pthm/sqljson/internal/clientgen/go"
	_ "github.com/pthm/sqljson/internal/clientgen/python"
	_ "github.com/pthm/sqljson/internal/clientgen/typescript"
	"github.com/pthm/sqljson/internal/resulttype"
	"github.com/pthm/sqljson/pkg/dbmd"
	"github.com/pthm/sqljson/pkg/modstmt"
)

// Config holds rendering options.
type Config = clientgen.Config

// ResultTypes is the result type tree of one query.
type ResultTypes = resulttype.Tree

// Statement describes a generated modification statement for
// GenerateStatement.
type Statement = clientgen.Statement

// Runtimes returns the names accepted by Generate, sorted.
func Runtimes() []string {
	return clientgen.List()
}

// DefaultConfig returns the default configuration of a runtime's renderer.
func DefaultConfig(runtime string) (*Config, error) {
	g := clientgen.Get(runtime)
	if g == nil {
		return nil, fmt.Errorf("clientgen: unknown runtime %q (available: %v)", runtime, clientgen.List())
	}
	return g.DefaultConfig(), nil
}

// Generate renders the result types of one query for the given runtime.
// A nil cfg uses the runtime's defaults.
func Generate(runtime string, types *ResultTypes, cfg *Config) (map[string][]byte, error) {
	g := clientgen.Get(runtime)
	if g == nil {
		return nil, fmt.Errorf("clientgen: unknown runtime %q (available: %v)", runtime, clientgen.List())
	}
	if types == nil {
		return nil, fmt.Errorf("clientgen: no result types to render")
	}
	return g.Generate(types, cfg)
}

// GenerateRelations renders table and column declarations for every
// relation in s.
func GenerateRelations(runtime string, s *dbmd.Schema, cfg *Config) (map[string][]byte, error) {
	g := clientgen.Get(runtime)
	if g == nil {
		return nil, fmt.Errorf("clientgen: unknown runtime %q (available: %v)", runtime, clientgen.List())
	}
	rg, ok := g.(clientgen.RelationsGenerator)
	if !ok {
		return nil, fmt.Errorf("clientgen: runtime %q cannot render relations", runtime)
	}
	return rg.GenerateRelations(s, cfg)
}

// GenerateStatement renders the SQL resource name and parameter names of a
// modification statement.
func GenerateStatement(runtime string, st *Statement, cfg *Config) (map[string][]byte, error) {
	g := clientgen.Get(runtime)
	if g == nil {
		return nil, fmt.Errorf("clientgen: unknown runtime %q (available: %v)", runtime, clientgen.List())
	}
	sg, ok := g.(clientgen.StatementGenerator)
	if !ok {
		return nil, fmt.Errorf("clientgen: runtime %q cannot render statements", runtime)
	}
	return sg.GenerateStatement(st, cfg)
}

// StatementOf describes a generated modification statement whose SQL is
// written to sqlResource.
func StatementOf(st *modstmt.Statement, sqlResource string) *Statement {
	return &Statement{
		Name:        st.Name,
		SQLResource: sqlResource,
		Params:      st.Params(),
		Numbered:    st.Style == modstmt.Numbered,
	}
}
