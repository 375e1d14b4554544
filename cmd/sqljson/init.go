package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/pthm/sqljson/internal/cli"
	"github.com/pthm/sqljson/pkg/clientgen"
)

var (
	initOutput   string
	initDefaults bool
	initForce    bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a sqljson.yaml",
	Long: `Create a sqljson.yaml configuration file. The settings are asked for
interactively unless --defaults is given.`,
	Example: `  # Answer a few questions
  sqljson init

  # Write the defaults without asking
  sqljson init --defaults`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(initOutput); err == nil && !initForce {
			return cli.ConfigError(fmt.Sprintf("%s already exists", initOutput), errors.New("use --force to overwrite"))
		}

		a := defaultInitAnswers()
		if !initDefaults {
			if err := a.ask(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				return cli.GeneralError("reading answers", err)
			}
		}

		out, err := a.render()
		if err != nil {
			return cli.GeneralError("encoding configuration", err)
		}
		if err := os.WriteFile(initOutput, out, 0o644); err != nil {
			return cli.GeneralError("writing configuration", err)
		}
		fmt.Printf("Wrote %s\n", initOutput)
		return nil
	},
}

func init() {
	f := initCmd.Flags()
	f.StringVar(&initOutput, "output", "sqljson.yaml", "configuration file to write")
	f.BoolVar(&initDefaults, "defaults", false, "write the defaults without asking")
	f.BoolVar(&initForce, "force", false, "overwrite an existing file")
}

type initAnswers struct {
	Queries     string
	DBMD        string
	DatabaseURL string
	Schemas     string
	Runtime     string
	TypesOutput string
}

func defaultInitAnswers() *initAnswers {
	return &initAnswers{
		Queries:     "queries.yaml",
		DBMD:        "dbmd.yaml",
		Schemas:     "public",
		TypesOutput: "generated/types",
	}
}

func (a *initAnswers) ask() error {
	runtimes := []huh.Option[string]{huh.NewOption("none", "")}
	for _, r := range clientgen.Runtimes() {
		runtimes = append(runtimes, huh.NewOption(r, r))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Query definition file").Value(&a.Queries),
			huh.NewInput().Title("Metadata snapshot file").Value(&a.DBMD),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Database URL").
				Description("Leave empty to use DATABASE_URL.").
				Value(&a.DatabaseURL),
			huh.NewInput().
				Title("Schemas to introspect").
				Description("Comma separated.").
				Value(&a.Schemas),
		),
		huh.NewGroup(
			huh.NewSelect[string]().Title("Result type runtime").Options(runtimes...).Value(&a.Runtime),
			huh.NewInput().Title("Result type output directory").Value(&a.TypesOutput),
		),
	).Run()
}

// render encodes the answers in the sqljson.yaml layout, leaving out
// settings that keep their defaults.
func (a *initAnswers) render() ([]byte, error) {
	doc := map[string]any{
		"queries": a.Queries,
		"dbmd":    a.DBMD,
	}
	if a.DatabaseURL != "" {
		doc["database"] = map[string]any{"url": a.DatabaseURL}
	}
	if schemas := splitList(a.Schemas); len(schemas) > 0 {
		doc["introspect"] = map[string]any{"schemas": schemas}
	}
	if a.Runtime != "" {
		doc["generate"] = map[string]any{
			"runtime":      a.Runtime,
			"types_output": a.TypesOutput,
		}
	}
	return yaml.Marshal(doc)
}
