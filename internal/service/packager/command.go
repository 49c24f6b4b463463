package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/advml-labs/labkit/internal/download"
	"github.com/advml-labs/labkit/internal/logger"
	"github.com/advml-labs/labkit/internal/service/bootstrap"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// ArtifactsDir is the directory holding the built installer binaries,
	// one per platform, named labkit-installer-<goos>-<goarch>[.exe].
	ArtifactsDir string
	// UpdateFolder is the URL of the folder the artifacts will be uploaded
	// to, printed in the upload guidance.
	UpdateFolder string
}

// packager prepares the release manifest for distribution.
// It is unexported, callers go through Run.
type packager struct {
	opts     *Options
	manifest *bootstrap.Manifest
}

var (
	// errBootstrapRunning rejects packaging while a bootstrap run is active.
	errBootstrapRunning = errors.New("the bootstrap is running now")
	// errNoArtifacts is returned when the artifacts directory has no installers.
	errNoArtifacts = errors.New("no installer artifacts found")
)

// installerPrefix names the platform installer artifacts.
const installerPrefix = "labkit-installer-"

// Run executes the packaging workflow: hash every platform installer in the
// artifacts directory and write the release manifest next to them.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "labkit-packager")

	if bootstrap.IsBootstrapRunningNow(ctx) {
		return errBootstrapRunning
	}

	pkg := &packager{
		opts:     opts,
		manifest: bootstrap.NewManifest(),
	}

	if err := pkg.run(ctx); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Packager completed successfully")

	return nil
}

// run populates and writes the release manifest.
func (p *packager) run(ctx context.Context) error {
	logger.Info(ctx, "Preparing release manifest")

	if err := p.fillManifest(); err != nil {
		return err
	}

	manifestPath := filepath.Join(p.opts.ArtifactsDir, bootstrap.ManifestFilename)

	logger.InfoKV(ctx, "Saving release manifest", "path", manifestPath)

	if err := p.saveManifest(manifestPath); err != nil {
		return err
	}

	p.printNextSteps(ctx)

	return nil
}

// fillManifest hashes every platform installer artifact into the manifest.
func (p *packager) fillManifest() error {
	entries, err := os.ReadDir(p.opts.ArtifactsDir)
	if err != nil {
		return fmt.Errorf("read artifacts directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		platform, ok := platformFromArtifact(entry.Name())
		if !ok {
			continue
		}

		checksum, err := download.FileChecksum(filepath.Join(p.opts.ArtifactsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("hash %s: %w", entry.Name(), err)
		}

		p.manifest.Platforms[platform] = bootstrap.PlatformRelease{
			Installer: entry.Name(),
			Checksum:  download.EncodeChecksum(checksum),
		}
	}

	if len(p.manifest.Platforms) == 0 {
		return fmt.Errorf("%s: %w", p.opts.ArtifactsDir, errNoArtifacts)
	}

	return nil
}

// platformFromArtifact extracts the goos-goarch key from an artifact filename.
func platformFromArtifact(name string) (string, bool) {
	if !strings.HasPrefix(name, installerPrefix) {
		return "", false
	}

	platform := strings.TrimSuffix(strings.TrimPrefix(name, installerPrefix), ".exe")
	if platform == "" || !strings.Contains(platform, "-") {
		return "", false
	}

	return platform, true
}

// saveManifest writes the manifest to disk.
func (p *packager) saveManifest(path string) error {
	contents, err := yaml.Marshal(p.manifest)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Clean(path), contents, 0o644)
}

// printNextSteps logs human-readable guidance for publishing the release.
func (p *packager) printNextSteps(ctx context.Context) {
	files := make([]string, 0, len(p.manifest.Platforms)+1)
	for _, release := range p.manifest.Platforms {
		files = append(files, release.Installer)
	}

	files = append(files, bootstrap.ManifestFilename)
	sort.Strings(files)

	var builder strings.Builder

	builder.WriteString("You should upload the following files to the folder ")
	builder.WriteString(p.opts.UpdateFolder)
	builder.WriteString(":\n")
	builder.WriteString(strings.Join(files, ",\n"))
	builder.WriteString("\n\nOn student machines, distribute labkit-bootstrap and ")
	builder.WriteString("a settings file pointing update_folder at this location.")

	logger.Info(ctx, builder.String())
}
