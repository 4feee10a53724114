package commands

import (
	"context"
	"fmt"
	"os"

	"finscraper/internal/components/telemetry"

	"github.com/spf13/cobra"
)

var configPath *string
var verbose *bool

// exitCode is set by commands that finish without a fatal error but should still fail.
var exitCode int

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The configuration file holding profiles, credentials and the store.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug information, including every request.")
}

var rootCmd = &cobra.Command{
	Use:           "finscraper",
	Short:         "finscraper scrapes financial portals according to institution profiles.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(os.Stderr, *verbose)
	},
}

// ExecuteContext runs the CLI and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}
