package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/screeps-deploy/internal/service/builder"
)

var (
	// buildOutDir is the directory the bundled output is written to.
	buildOutDir string

	// buildMinify enables output minification.
	buildMinify bool

	// buildNoSourceMaps disables source-map generation.
	buildNoSourceMaps bool

	// buildCmd bundles an entry point without deploying anything.
	buildCmd = &cobra.Command{
		Use:   "build [entry]",
		Short: "Bundle an entry point and post-process its source maps",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &builder.Options{
				Entry:             args[0],
				OutDir:            buildOutDir,
				Minify:            buildMinify,
				DisableSourceMaps: buildNoSourceMaps,
			}

			return builder.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	buildCmd.Flags().StringVar(&buildOutDir, "dir", "dist", "output directory for the bundle")
	buildCmd.Flags().BoolVar(&buildMinify, "minify", false, "minify the bundled output")
	buildCmd.Flags().BoolVar(&buildNoSourceMaps, "no-source-maps", false, "disable source-map generation")

	rootCmd.AddCommand(buildCmd)
}
