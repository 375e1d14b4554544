package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pthm/sqljson/internal/cli"
	"github.com/pthm/sqljson/pkg/clientgen"
	"github.com/pthm/sqljson/pkg/dbmd"
)

var (
	relDBMD    string
	relRuntime string
	relOutput  string
	relPackage string
)

var relationsCmd = &cobra.Command{
	Use:   "relations",
	Short: "Render table and column declarations from a metadata snapshot",
	Long: `Render every table and column of the metadata snapshot as source code,
so application code can refer to relation and column names without string
literals. Each column carries its database type, size, nullability and
primary key position.

Supported runtimes: ` + strings.Join(clientgen.Runtimes(), ", "),
	Example: `  # Go declarations in generated/types/relations/relations.go
  sqljson relations --runtime go

  # A TypeScript module next to the query types
  sqljson relations --runtime typescript --output web/src/db --package tables`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runtime := resolveString(relRuntime, cfg.Generate.Runtime)
		if runtime == "" {
			return cli.ConfigError("no runtime selected", fmt.Errorf("use --runtime or generate.runtime"))
		}
		cg, err := clientgen.DefaultConfig(runtime)
		if err != nil {
			return cli.ConfigError(fmt.Sprintf("unknown runtime %q", runtime),
				fmt.Errorf("supported runtimes: %s", strings.Join(clientgen.Runtimes(), ", ")))
		}
		cg.Package = relPackage

		dbmdPath := resolveString(relDBMD, cfg.DBMD)
		s, err := dbmd.Load(dbmdPath)
		if err != nil {
			return cli.QueryError("loading database metadata", err)
		}
		files, err := clientgen.GenerateRelations(runtime, s, cg)
		if err != nil {
			return cli.GenerationError("rendering relations", err)
		}
		paths, err := cli.WriteSourceFiles(resolveString(relOutput, cfg.Generate.TypesOutput), files)
		if err != nil {
			return cli.GeneralError("writing relations", err)
		}
		for _, p := range paths {
			logger.Info("wrote file", "path", p)
		}
		if !quiet {
			fmt.Printf("Rendered %d tables from %s into %s\n", len(s.Tables), dbmdPath, strings.Join(paths, ", "))
		}
		return nil
	},
}

func init() {
	f := relationsCmd.Flags()
	f.StringVar(&relDBMD, "dbmd", "", "database metadata snapshot (default: dbmd.yaml)")
	f.StringVar(&relRuntime, "runtime", "", "runtime: "+strings.Join(clientgen.Runtimes(), ", "))
	f.StringVar(&relOutput, "output", "", "output directory (default: generate.types_output)")
	f.StringVar(&relPackage, "package", "", "package or module name (default: relations)")
}
