package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/screeps-deploy/internal/logger"
	"github.com/oshokin/screeps-deploy/internal/version"
)

var (
	// logLevel is the minimum level for console output.
	logLevel string

	// rootCmd represents the base command for the deployment tool.
	rootCmd = &cobra.Command{
		Use:   "screeps-deploy",
		Short: "Bundle and deploy game automation code to a Screeps server",
		Long: "screeps-deploy bundles automation code with esbuild, rewrites generated " +
			"source maps into requireable modules, and pushes the result to a named " +
			"branch on an official or private Screeps server.",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}
		},
	}
)

// Execute runs the screeps-deploy CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "minimum log level (debug, info, warn, error)")
}
