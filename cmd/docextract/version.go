package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/docextract/internal/storage"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		// Skip config loading so version works with a broken setup
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("docextract version %s\n", version)
			cmd.Printf("Build Time: %s\n", buildTime)
			cmd.Printf("Build Mode: %s\n", storage.BuildMode)
			cmd.Printf("SQLite Driver: %s\n", storage.DriverName)
		},
	}
}
