package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/advml-labs/labkit/internal/service/packager"
	"github.com/advml-labs/labkit/internal/version"
)

var (
	// updateFolder is the URL the artifacts will be uploaded to.
	updateFolder string

	// rootCmd represents the base command for building a release manifest.
	rootCmd = &cobra.Command{
		Use:   "labkit-packager [artifacts-dir]",
		Short: "Build the release manifest for an installer release",
		Long: `Hashes every platform installer binary in the artifacts directory with
SHA-512 and writes the release manifest next to them. Upload the directory
contents to the update folder to publish the release.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			artifactsDir := "."
			if len(args) > 0 {
				artifactsDir = args[0]
			}

			options := &packager.Options{
				ArtifactsDir: artifactsDir,
				UpdateFolder: updateFolder,
			}

			return packager.Run(ctx, options)
		},
	}
)

// Execute runs the labkit-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&updateFolder, "update-folder", "u", "",
		"url of the folder the artifacts will be uploaded to")

	if err := rootCmd.MarkFlagRequired("update-folder"); err != nil {
		panic(err)
	}
}
