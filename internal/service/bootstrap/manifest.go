package bootstrap

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"runtime"
	"strings"

	"github.com/advml-labs/labkit/internal/version"
)

const (
	// ManifestFilename stores the release manifest pushed to the update folder.
	ManifestFilename = "labkit-version.yaml"

	// MarkerFilename marks that the bootstrap is running right now to avoid
	// parallel execution.
	MarkerFilename = "labkit-update-marker.bin"

	// defaultMapCapacity is the default initial capacity for maps.
	defaultMapCapacity = 4
)

// errUnknownPlatform is returned when the manifest has no release for the
// current platform.
var errUnknownPlatform = errors.New("no release for platform")

// PlatformRelease describes the installer artifact of one platform.
type PlatformRelease struct {
	// Installer is the artifact filename inside the update folder.
	Installer string `yaml:"installer"`
	// Checksum is the base64-encoded SHA-512 of the artifact.
	Checksum string `yaml:"checksum"`
}

// Manifest contains metadata about a published release.
type Manifest struct {
	// VersionNumber is the semantic version of this release.
	VersionNumber string `yaml:"version"`
	// Platforms maps goos-goarch keys to their installer artifacts.
	Platforms map[string]PlatformRelease `yaml:"platforms"`
}

// NewManifest produces a Manifest stamped with the build version.
func NewManifest() *Manifest {
	return &Manifest{
		VersionNumber: version.Short(),
		Platforms:     make(map[string]PlatformRelease, defaultMapCapacity),
	}
}

// ReleaseFor returns the installer artifact of a platform key.
func (m *Manifest) ReleaseFor(platform string) (PlatformRelease, error) {
	release, found := m.Platforms[platform]
	if !found {
		return PlatformRelease{}, fmt.Errorf("%s: %w", platform, errUnknownPlatform)
	}

	return release, nil
}

// PlatformKey identifies the current platform inside the manifest.
func PlatformKey() string {
	return runtime.GOOS + "-" + runtime.GOARCH
}

// InstallerExecutable is the local filename of the installer binary.
func InstallerExecutable() string {
	return "labkit-installer" + executableExtension()
}

// remoteFileURL composes the URL of a file inside the update folder,
// normalizing duplicate slashes.
func remoteFileURL(folder, fileName string) (string, error) {
	parsed, err := url.Parse(folder)
	if err != nil {
		return "", fmt.Errorf("parse update folder: %w", err)
	}

	parsed.Path = path.Join(parsed.Path, fileName)

	return parsed.String(), nil
}

// executableExtension returns ".exe" on Windows and "" elsewhere.
func executableExtension() string {
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return ".exe"
	}

	return ""
}
