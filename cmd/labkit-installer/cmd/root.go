package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/advml-labs/labkit/internal/config"
	"github.com/advml-labs/labkit/internal/logger"
	"github.com/advml-labs/labkit/internal/service/installer"
	"github.com/advml-labs/labkit/internal/version"
)

var (
	// configPath stores the path to the settings YAML file.
	configPath string
	// logLevel overrides the default logging level.
	logLevel string
	// dryRun lists the steps without touching the machine.
	dryRun bool
	// quiet disables the per-step progress spinner.
	quiet bool
	// skipSteps excludes named steps from the run.
	skipSteps []string

	// rootCmd represents the base command for provisioning the lab.
	rootCmd = &cobra.Command{
		Use:   "labkit-installer",
		Short: "Provision the machine-learning lab environment",
		Long: `Provisions a complete machine-learning lab environment on this machine.

Runs a fixed sequence of steps: lab directories, system packages, Python
virtual environment, pip packages, datasets, course notebooks, Jupyter
configuration, desktop shortcut, backup launcher, autostart registration and
the local LLM runtime. Every step is idempotent, so re-running the installer
on an already provisioned machine performs no redundant work.

Failed dataset downloads abort the run; notebook, autostart and LLM runtime
problems only produce warnings.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			options := &installer.Options{
				ConfigPath: configPath,
				DryRun:     dryRun,
				Quiet:      quiet,
				SkipSteps:  skipSteps,
			}

			return installer.Run(ctx, options)
		},
	}
)

// Execute runs the labkit-installer CLI and exits with non-zero status on error.
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
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "logging level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the steps without changing anything")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "disable the progress spinner")
	rootCmd.Flags().StringSliceVar(&skipSteps, "skip", nil,
		"steps to skip, one or more of: "+strings.Join(installer.StepNames(), ", "))
}
