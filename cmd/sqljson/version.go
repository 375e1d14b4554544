package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm/sqljson/internal/update"
	"github.com/pthm/sqljson/internal/version"
)

var versionCheck bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.Info())
		if !versionCheck {
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		info, err := update.CheckWithCache(ctx)
		if err != nil {
			fmt.Printf("Could not check for updates: %v\n", err)
			return nil
		}
		if info.UpdateAvailable {
			fmt.Printf("A newer version is available: %s (installed: %s)\n", info.LatestVersion, info.CurrentVersion)
			if info.ReleaseURL != "" {
				fmt.Println(info.ReleaseURL)
			}
		} else {
			fmt.Println("sqljson is up to date.")
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check GitHub for a newer release")
}
