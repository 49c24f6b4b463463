package packager

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/advml-labs/labkit/internal/service/bootstrap"
)

// TestPlatformFromArtifact extracts platform keys from artifact names.
func TestPlatformFromArtifact(t *testing.T) {
	t.Parallel()

	platform, ok := platformFromArtifact("labkit-installer-linux-amd64")
	require.True(t, ok)
	require.Equal(t, "linux-amd64", platform)

	platform, ok = platformFromArtifact("labkit-installer-windows-amd64.exe")
	require.True(t, ok)
	require.Equal(t, "windows-amd64", platform)

	_, ok = platformFromArtifact("labkit-bootstrap-linux-amd64")
	require.False(t, ok)

	_, ok = platformFromArtifact("labkit-installer-")
	require.False(t, ok)
}

// TestFillManifest_HashesArtifacts writes the manifest with one entry per
// platform artifact and correct SHA-512 checksums.
func TestFillManifest_HashesArtifacts(t *testing.T) {
	t.Parallel()

	artifactsDir := t.TempDir()
	payload := []byte("installer binary payload")

	require.NoError(t, os.WriteFile(
		filepath.Join(artifactsDir, "labkit-installer-linux-amd64"), payload, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(artifactsDir, "README.md"), []byte("docs"), 0o644))

	pkg := &packager{
		opts:     &Options{ArtifactsDir: artifactsDir, UpdateFolder: "https://updates.example.com/labkit"},
		manifest: bootstrap.NewManifest(),
	}

	require.NoError(t, pkg.fillManifest())
	require.Len(t, pkg.manifest.Platforms, 1)

	release, err := pkg.manifest.ReleaseFor("linux-amd64")
	require.NoError(t, err)
	require.Equal(t, "labkit-installer-linux-amd64", release.Installer)

	sum := sha512.Sum512(payload)
	require.Equal(t, base64.StdEncoding.EncodeToString(sum[:]), release.Checksum)
}

// TestFillManifest_NoArtifacts rejects empty artifact directories.
func TestFillManifest_NoArtifacts(t *testing.T) {
	t.Parallel()

	pkg := &packager{
		opts:     &Options{ArtifactsDir: t.TempDir()},
		manifest: bootstrap.NewManifest(),
	}

	require.ErrorIs(t, pkg.fillManifest(), errNoArtifacts)
}

// TestRun_WritesManifest runs the whole workflow and decodes the saved YAML.
func TestRun_WritesManifest(t *testing.T) {
	t.Parallel()

	artifactsDir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(artifactsDir, "labkit-installer-darwin-arm64"), []byte("payload"), 0o755))

	opts := &Options{ArtifactsDir: artifactsDir, UpdateFolder: "s3://lab-releases/labkit"}
	require.NoError(t, Run(context.Background(), opts))

	data, err := os.ReadFile(filepath.Join(artifactsDir, bootstrap.ManifestFilename))
	require.NoError(t, err)

	var manifest bootstrap.Manifest
	require.NoError(t, yaml.Unmarshal(data, &manifest))
	require.NotEmpty(t, manifest.VersionNumber)

	_, err = manifest.ReleaseFor("darwin-arm64")
	require.NoError(t, err)
}
