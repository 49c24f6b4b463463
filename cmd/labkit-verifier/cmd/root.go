package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/advml-labs/labkit/internal/config"
	"github.com/advml-labs/labkit/internal/service/verifier"
	"github.com/advml-labs/labkit/internal/version"
)

var (
	// configPath stores the path to the settings YAML file.
	configPath string

	// rootCmd represents the base command for verifying the lab environment.
	rootCmd = &cobra.Command{
		Use:   "labkit-verifier",
		Short: "Verify the provisioned lab environment",
		Long: `Inspects the lab environment and prints a health report: directories,
virtual environment, dataset checksums, emitted artifacts, the autostart
service and the local LLM runtime.

The command exits non-zero when any required check fails, so it can gate
scripted workflows.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &verifier.Options{
				ConfigPath: configPath,
			}

			return verifier.Run(ctx, options)
		},
	}
)

// Execute runs the labkit-verifier CLI and exits with non-zero status on error.
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
}
