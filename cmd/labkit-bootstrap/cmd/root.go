package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/advml-labs/labkit/internal/config"
	"github.com/advml-labs/labkit/internal/service/bootstrap"
	"github.com/advml-labs/labkit/internal/version"
)

var (
	// configPath stores the path to the settings YAML file.
	configPath string
	// skipInstall applies the installer update without executing it.
	skipInstall bool

	// rootCmd represents the base command for fetching and applying updates.
	rootCmd = &cobra.Command{
		Use:   "labkit-bootstrap",
		Short: "Download the current installer and hand over to it",
		Long: `Fetches the release manifest from the configured update folder, downloads
the platform installer when the local copy is outdated, verifies its SHA-512
checksum, swaps the binary atomically and executes it.

A matching checksum skips the download entirely, so running the bootstrap on
an up-to-date machine is cheap.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &bootstrap.Options{
				ConfigPath:  configPath,
				SkipInstall: skipInstall,
			}

			return bootstrap.Run(ctx, options)
		},
	}
)

// Execute runs the labkit-bootstrap CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to settings file")
	rootCmd.Flags().BoolVar(&skipInstall, "skip-install", false, "update the installer without executing it")
}
