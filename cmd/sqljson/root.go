package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pthm/sqljson/internal/cli"
)

var (
	// Global state set during PersistentPreRunE
	cfg        *cli.Config
	configPath string
	logger     = slog.Default()

	// Persistent flags
	cfgFile string
	verbose int
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "sqljson",
	Short: "Generate SQL that returns nested JSON",
	Long: `sqljson - SQL/JSON query generator

sqljson compiles hierarchical query definitions into SQL statements that
return nested JSON objects, checked against a snapshot of your database
metadata, and declares the result types for Go, TypeScript and Python.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that do not use it
		switch cmd.Name() {
		case "help", "completion", "version", "init":
			return nil
		}

		var err error
		cfg, configPath, err = cli.LoadConfig(cfgFile)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}

		logger, err = cli.NewLogger(os.Stderr, verbose, quiet, cfg.Log.Format)
		if err != nil {
			return cli.ConfigError("configuring logging", err)
		}
		slog.SetDefault(logger)
		if configPath != "" {
			logger.Debug("loaded configuration", "path", configPath)
		}

		return nil
	},
	SilenceUsage:  true, // Don't show usage on errors
	SilenceErrors: true, // We handle errors ourselves
}

// Command group IDs
const (
	groupQueries  = "queries"
	groupDatabase = "database"
	groupUtility  = "utility"
)

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: auto-discover sqljson.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase verbosity (can be repeated)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupQueries, Title: "Queries:"},
		&cobra.Group{ID: groupDatabase, Title: "Database:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	generateCmd.GroupID = groupQueries
	validateCmd.GroupID = groupQueries
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(validateCmd)

	introspectCmd.GroupID = groupDatabase
	doctorCmd.GroupID = groupDatabase
	relationsCmd.GroupID = groupDatabase
	rootCmd.AddCommand(introspectCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(relationsCmd)

	initCmd.GroupID = groupUtility
	configCmd.GroupID = groupUtility
	versionCmd.GroupID = groupUtility
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cli.ExitWithError(err)
	}
}

// resolveString returns the first non-empty string from the provided values.
// Used to implement precedence: flag > config > default.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// resolveInt returns the first positive value.
func resolveInt(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// splitList splits a comma separated list, dropping blank entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
