package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/vectorquery/internal/storage"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "vectorquery %s\n", version)
			fmt.Fprintf(w, "Build Time: %s\n", buildTime)
			fmt.Fprintf(w, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(w, "SQLite Driver: %s\n", storage.DriverName)
			fmt.Fprintf(w, "Vector Extension: %v\n", storage.VectorExtensionAvailable)
		},
	}
}
