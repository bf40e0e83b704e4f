package cmd

import (
	"fmt"

	"github.com/collabcore/collabcore/internal/config"
	"github.com/spf13/cobra"
)

var checkConfigFile string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a project configuration file without starting the server",
	Run: func(cmd *cobra.Command, args []string) {
		proj, err := config.Load(checkConfigFile)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "invalid config: %s\n", err)
			cobra.CheckErr(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok: project %q, cycle_time=%dus, bands=%.0f/%.0f/%.0f\n",
			proj.Name, proj.CycleTimeMicros, proj.BufferCritical, proj.BufferSecondary, proj.BufferAuxiliary)
	},
}

func init() {
	checkCmd.Flags().StringVarP(&checkConfigFile, "config", "c", "collabcore.yaml", "path to the project configuration file")
	rootCmd.AddCommand(checkCmd)
}
