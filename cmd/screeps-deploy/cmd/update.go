package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/screeps-deploy/internal/service/updater"
)

var (
	// updateTimeout bounds manifest and binary downloads.
	updateTimeout time.Duration

	// updateCmd replaces the running executable with the published release.
	updateCmd = &cobra.Command{
		Use:   "update [manifest-url]",
		Short: "Self-update from a release manifest URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &updater.Options{
				ManifestURL: args[0],
				Timeout:     updateTimeout,
			}

			return updater.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	updateCmd.Flags().DurationVar(&updateTimeout, "timeout", time.Minute, "timeout for each download")

	rootCmd.AddCommand(updateCmd)
}
