package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/screeps-deploy/internal/config"
	"github.com/oshokin/screeps-deploy/internal/service/builder"
	"github.com/oshokin/screeps-deploy/internal/service/deployer"
)

var (
	// configPath to the destination configuration file.
	configPath string

	// destination is the name of the deployment target.
	destination string

	// branchOverride replaces the configured branch when set.
	branchOverride string

	// outputDir is the build output directory to upload.
	outputDir string

	// entryPoint makes the deploy command bundle before uploading.
	entryPoint string

	// allowNoDestination turns a missing destination into a logged no-op.
	allowNoDestination bool

	// dryRun skips the network deployment sequence.
	dryRun bool

	// deployCmd uploads a build output directory to a server branch,
	// optionally bundling an entry point first.
	deployCmd = &cobra.Command{
		Use:   "deploy",
		Short: "Upload a build output directory to a server branch",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if entryPoint != "" {
				buildOptions := &builder.Options{
					Entry:  entryPoint,
					OutDir: outputDir,
				}

				if err := builder.Run(ctx, buildOptions); err != nil {
					return err
				}
			}

			options := &deployer.Options{
				ConfigPath:         configPath,
				Destination:        destination,
				BranchOverride:     branchOverride,
				OutputDir:          outputDir,
				AllowNoDestination: allowNoDestination,
				DryRun:             dryRun,
			}

			return deployer.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	deployCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to destination configuration file")
	deployCmd.Flags().StringVarP(&destination, "destination", "d", "", "destination name from the configuration file")
	deployCmd.Flags().StringVar(&branchOverride, "branch", "", "override the configured branch")
	deployCmd.Flags().StringVar(&outputDir, "dir", "dist", "build output directory")
	deployCmd.Flags().StringVar(&entryPoint, "entry", "", "bundle this entry point before deploying")
	deployCmd.Flags().BoolVar(&allowNoDestination, "allow-no-destination", false, "skip deployment when no destination is given")
	deployCmd.Flags().BoolVar(&dryRun, "dry-run", false, "perform local work but skip the upload")

	rootCmd.AddCommand(deployCmd)
}
