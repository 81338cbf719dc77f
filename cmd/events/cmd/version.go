package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is set via ldflags during build.
var Version = "0.0.1"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Events API %s\n", Version)
		fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
	},
}
