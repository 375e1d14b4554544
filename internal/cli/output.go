package cli

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pthm/sqljson/internal/generator"
	"github.com/pthm/sqljson/pkg/clientgen"
	"github.com/pthm/sqljson/pkg/modstmt"
	"github.com/pthm/sqljson/pkg/query"
)

// SQLFileName returns the file name for one representation of a query,
// e.g. "drugs(json object rows).sql".
func SQLFileName(queryName string, repr query.ResultRepr) string {
	r := strings.ReplaceAll(strings.ToLower(string(repr)), "_", " ")
	return queryName + "(" + r + ").sql"
}

// WriteSQLFiles writes every generated representation of q into dir and
// returns the paths written, in representation order.
func WriteSQLFiles(dir string, q *generator.QueryResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	paths := make([]string, 0, len(q.Reprs))
	for _, repr := range q.Reprs {
		var b strings.Builder
		b.WriteString("-- Code generated by sqljson. DO NOT EDIT.\n")
		fmt.Fprintf(&b, "-- %s results representation for %s\n", repr, q.Name)
		if len(q.Params) > 0 {
			fmt.Fprintf(&b, "-- params: %s\n", strings.Join(q.Params, ", "))
		}
		b.WriteString(q.SQL[repr])
		b.WriteString("\n")

		path := filepath.Join(dir, SQLFileName(q.Name, repr))
		if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
			return paths, fmt.Errorf("writing %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteTypeFiles renders the result types of q for runtime into dir. It
// writes nothing for queries without result types or with source output
// disabled. pkg is passed to the renderer as the package or module name.
func WriteTypeFiles(dir, runtime, pkg string, q *generator.QueryResult) ([]string, error) {
	if q.Types == nil || !q.GenerateSource {
		return nil, nil
	}
	cfg, err := clientgen.DefaultConfig(runtime)
	if err != nil {
		return nil, err
	}
	cfg.Package = pkg
	cfg.Header = q.TypesFileHeader

	files, err := clientgen.Generate(runtime, q.Types, cfg)
	if err != nil {
		return nil, err
	}

	return WriteSourceFiles(dir, files)
}

// WriteSourceFiles writes rendered files, keyed by relative path, into dir
// and returns the paths written in name order.
func WriteSourceFiles(dir string, files map[string][]byte) ([]string, error) {
	var paths []string
	for _, name := range slices.Sorted(maps.Keys(files)) {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return paths, fmt.Errorf("creating output directory: %w", err)
		}
		if err := os.WriteFile(path, files[name], 0o644); err != nil {
			return paths, fmt.Errorf("writing %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// StatementFileName returns the SQL file name of a modification statement.
func StatementFileName(name string) string {
	return name + ".sql"
}

// WriteStatementFiles writes the SQL of st into sqlDir. When runtime is set
// and the statement asks for source output, its parameter declarations are
// rendered into typesDir as well.
func WriteStatementFiles(sqlDir, typesDir, runtime, pkg string, st *modstmt.Statement) ([]string, error) {
	if err := os.MkdirAll(sqlDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	var b strings.Builder
	b.WriteString("-- Code generated by sqljson. DO NOT EDIT.\n")
	fmt.Fprintf(&b, "-- %s statement %s\n", st.Command, st.Name)
	if params := st.Params(); len(params) > 0 {
		fmt.Fprintf(&b, "-- params: %s\n", strings.Join(params, ", "))
	}
	b.WriteString(st.SQL)
	b.WriteString("\n")

	sqlPath := filepath.Join(sqlDir, StatementFileName(st.Name))
	if err := os.WriteFile(sqlPath, []byte(b.String()), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", sqlPath, err)
	}
	paths := []string{sqlPath}
	if runtime == "" || !st.GenerateSource {
		return paths, nil
	}

	cfg, err := clientgen.DefaultConfig(runtime)
	if err != nil {
		return paths, err
	}
	cfg.Package = pkg
	files, err := clientgen.GenerateStatement(runtime, clientgen.StatementOf(st, StatementFileName(st.Name)), cfg)
	if err != nil {
		return paths, err
	}
	written, err := WriteSourceFiles(typesDir, files)
	return append(paths, written...), err
}
