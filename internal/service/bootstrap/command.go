package bootstrap

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	goupdate "github.com/doitdistributed/go-update"
	goversion "github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"

	"github.com/advml-labs/labkit/internal/config"
	"github.com/advml-labs/labkit/internal/download"
	"github.com/advml-labs/labkit/internal/logger"
)

var (
	errBootstrapAlreadyRunning = errors.New("the bootstrap is already running")
	errNoUpdateFolder          = errors.New("update_folder is not configured")
	errEmptyManifest           = errors.New("release manifest is empty")
	errUnsupportedOS           = errors.New("os not supported")
)

// Options are inputs accepted by the bootstrap entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// SkipInstall downloads and applies the installer without executing it.
	SkipInstall bool
}

// runner holds the mutable state for a single bootstrap execution.
// It is intentionally unexported, callers go through Run(ctx, opts).
type runner struct {
	opts               *Options
	cfg                *config.Config
	fetcher            *download.Client
	manifest           *Manifest
	localVersion       string
	temporaryDirectory string
}

// Run executes the bootstrap lifecycle and is the public entry point for the
// CLI: fetch the release manifest, fetch the platform installer when the
// local copy is outdated, apply it atomically and hand over to it.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "labkit-bootstrap")

	b, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	defer b.cleanup(ctx)

	if err = b.run(ctx); err != nil {
		logger.ErrorKV(ctx, "Bootstrap run failed", "error", err)
		return err
	}

	logger.Info(ctx, "Bootstrap completed")

	return nil
}

// newRunner prepares the run and writes a marker to avoid concurrent runs.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	b := &runner{opts: opts}

	if IsBootstrapRunningNow(ctx) {
		return b, errBootstrapAlreadyRunning
	}

	updateMarker, err := os.Create(MarkerFilename)
	if err != nil {
		return b, err
	}

	if err = updateMarker.Close(); err != nil {
		return b, err
	}

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return b, err
	}

	if settings.UpdateFolder == "" {
		return b, errNoUpdateFolder
	}

	b.cfg = settings
	b.fetcher = download.NewClient(time.Duration(settings.Timeout))

	return b, nil
}

// run executes the workflow for this runner instance:
// 1) Fetch the remote release manifest.
// 2) Detect the local installer version.
// 3) Compare versions and checksums.
// 4) Download and apply the installer if needed.
// 5) Hand over to the installer.
func (b *runner) run(ctx context.Context) error {
	logger.InfoKV(ctx, "Fetching release manifest", "folder", b.cfg.UpdateFolder)

	if err := b.fetchManifest(ctx); err != nil {
		return fmt.Errorf("fetch release manifest: %w", err)
	}

	logger.Info(ctx, "Detecting local installer version")

	b.localVersion = b.detectLocalVersion(ctx)

	release, err := b.manifest.ReleaseFor(PlatformKey())
	if err != nil {
		return err
	}

	needed, err := b.updateNeeded(ctx, release)
	if err != nil {
		return err
	}

	if needed {
		if err = b.applyInstaller(ctx, release); err != nil {
			return fmt.Errorf("apply installer update: %w", err)
		}
	} else {
		logger.Info(ctx, "Installer is current, skipping download")
	}

	if b.opts.SkipInstall {
		return nil
	}

	logger.Info(ctx, "Handing over to the installer")

	return b.startInstaller(ctx)
}

// fetchManifest downloads and parses the release manifest from the update
// folder. The download layer routes http(s) and s3 folders alike.
func (b *runner) fetchManifest(ctx context.Context) error {
	temporaryDirectory, err := os.MkdirTemp("", "labkit-bootstrap-")
	if err != nil {
		return err
	}

	b.temporaryDirectory = temporaryDirectory

	manifestURL, err := remoteFileURL(b.cfg.UpdateFolder, ManifestFilename)
	if err != nil {
		return err
	}

	manifestPath := filepath.Join(temporaryDirectory, ManifestFilename)
	if err = b.fetcher.Fetch(ctx, manifestURL, manifestPath); err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Clean(manifestPath))
	if err != nil {
		return err
	}

	var manifest Manifest
	if err = yaml.Unmarshal(data, &manifest); err != nil {
		return err
	}

	if manifest.VersionNumber == "" || len(manifest.Platforms) == 0 {
		return errEmptyManifest
	}

	b.manifest = &manifest

	return nil
}

// detectLocalVersion runs the installed binary to get its version. A missing
// or broken binary is not an error, it simply means a first install.
func (b *runner) detectLocalVersion(ctx context.Context) string {
	cmdCtx, cancel := context.WithTimeout(ctx, versionCommandTimeout)
	defer cancel()

	output, err := exec.CommandContext(cmdCtx, installerPath(), "version").Output()
	if err != nil {
		logger.Warnf(ctx, "Could not get local version from %s: %v", InstallerExecutable(), err)
		return ""
	}

	parsed, err := parseVersionFromOutput(string(output))
	if err != nil {
		logger.Warnf(ctx, "Could not parse local version output: %v", err)
		return ""
	}

	return parsed
}

// updateNeeded compares the local installer against the manifest. A matching
// checksum always means current, regardless of version output, so a manually
// copied binary is never re-downloaded.
func (b *runner) updateNeeded(ctx context.Context, release PlatformRelease) (bool, error) {
	if b.installerChecksumMatches(release) {
		logger.Info(ctx, "Local installer checksum matches the manifest")
		return false, nil
	}

	if b.localVersion == "" {
		logger.Info(ctx, "No local version detected, update needed")
		return true, nil
	}

	local, err := goversion.NewVersion(b.localVersion)
	if err != nil {
		logger.Warnf(ctx, "Unparseable local version %q, update needed", b.localVersion)
		return true, nil //nolint:nilerr // Broken local binary is replaced, not fatal.
	}

	remote, err := goversion.NewVersion(b.manifest.VersionNumber)
	if err != nil {
		return false, fmt.Errorf("manifest version %q: %w", b.manifest.VersionNumber, err)
	}

	if remote.GreaterThan(local) {
		logger.InfoKV(ctx, "Version update required",
			"local", local.String(), "remote", remote.String())

		return true, nil
	}

	// Same version but different checksum: the binary was tampered with or
	// truncated, re-apply.
	logger.InfoKV(ctx, "Checksum mismatch at current version, re-applying",
		"version", local.String())

	return true, nil
}

// installerChecksumMatches reports whether the local installer binary hashes
// to the manifest checksum.
func (b *runner) installerChecksumMatches(release PlatformRelease) bool {
	if _, err := os.Stat(installerPath()); err != nil {
		return false
	}

	matches, err := download.VerifyFile(installerPath(), release.Checksum)

	return err == nil && matches
}

// applyInstaller downloads the platform artifact, verifies its checksum and
// swaps the binary atomically.
func (b *runner) applyInstaller(ctx context.Context, release PlatformRelease) error {
	artifactURL, err := remoteFileURL(b.cfg.UpdateFolder, release.Installer)
	if err != nil {
		return err
	}

	downloadedPath := filepath.Join(b.temporaryDirectory, release.Installer)

	logger.InfoKV(ctx, "Downloading installer", "url", artifactURL)

	if err = b.fetcher.Fetch(ctx, artifactURL, downloadedPath); err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Clean(downloadedPath))
	if err != nil {
		return err
	}

	checksum, err := base64.StdEncoding.DecodeString(release.Checksum)
	if err != nil {
		return fmt.Errorf("decode manifest checksum: %w", err)
	}

	if _, err = os.Stat(installerPath()); err != nil && os.IsNotExist(err) {
		if _, err = os.Create(installerPath()); err != nil {
			return err
		}
	}

	options := goupdate.Options{
		TargetPath: installerPath(),
		TargetMode: 0o755,
		Checksum:   checksum,
		Hash:       download.DefaultChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return err
	}

	oldFileName := installerPath() + ".old"
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	logger.InfoKV(ctx, "Installer updated", "version", b.manifest.VersionNumber)

	return nil
}

// startInstaller launches the installer, passing the settings path through.
func (b *runner) startInstaller(ctx context.Context) error {
	args := []string{}
	if b.opts.ConfigPath != "" {
		args = append(args, "--config", b.opts.ConfigPath)
	}

	osLC := strings.ToLower(runtime.GOOS)
	switch {
	case strings.Contains(osLC, "linux") || strings.Contains(osLC, "darwin"):
		return exec.CommandContext(ctx, installerPath(), args...).Start()
	case strings.Contains(osLC, "windows"):
		startArgs := append([]string{"/C", "start", installerPath()}, args...)
		return exec.CommandContext(ctx, "cmd.exe", startArgs...).Start()
	default:
		return fmt.Errorf("%s OS is not supported: %w", runtime.GOOS, errUnsupportedOS)
	}
}

// installerPath returns the installer location next to the bootstrap binary.
func installerPath() string {
	return filepath.Join(".", InstallerExecutable())
}

// cleanup removes temporary artifacts and the running marker.
func (b *runner) cleanup(ctx context.Context) {
	if _, err := os.Stat(MarkerFilename); err == nil {
		_ = os.Remove(MarkerFilename)
	}

	if b.temporaryDirectory != "" {
		if _, err := os.Stat(b.temporaryDirectory); err == nil {
			_ = os.RemoveAll(b.temporaryDirectory)
		}
	}

	logger.Info(ctx, "The bootstrap has been stopped")
}
