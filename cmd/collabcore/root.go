package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "collabcore",
	Short:   "collabcore - collaborative code editor core server",
	Version: "v0.1.0",
	Long:    "collabcore runs the scheduler, edit buffers and notification fan-out behind a collaborative code editor project.",
}

// Execute runs the root command, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "collabcore: %s\n", err)
		os.Exit(1)
	}
}
