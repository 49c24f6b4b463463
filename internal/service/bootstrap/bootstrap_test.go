package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestParseVersionFromOutput accepts the installer version format and rejects
// everything else.
func TestParseVersionFromOutput(t *testing.T) {
	t.Parallel()

	parsed, err := parseVersionFromOutput("version: 0.3.0, commit: abc123, built at: 2026-08-29\n")
	require.NoError(t, err)
	require.Equal(t, "0.3.0", parsed)

	parsed, err = parseVersionFromOutput("version: 1.2.3")
	require.NoError(t, err)
	require.Equal(t, "1.2.3", parsed)

	_, err = parseVersionFromOutput("labkit-installer 0.3.0")
	require.ErrorIs(t, err, errInvalidVersionOutput)

	_, err = parseVersionFromOutput("version: ")
	require.ErrorIs(t, err, errInvalidVersionOutput)
}

// TestManifest_Decode parses the published YAML shape.
func TestManifest_Decode(t *testing.T) {
	t.Parallel()

	raw := `
version: 0.3.0
platforms:
  linux-amd64:
    installer: labkit-installer-linux-amd64
    checksum: c29tZS1jaGVja3N1bQ==
  windows-amd64:
    installer: labkit-installer-windows-amd64.exe
    checksum: b3RoZXItY2hlY2tzdW0=
`

	var manifest Manifest
	require.NoError(t, yaml.Unmarshal([]byte(raw), &manifest))
	require.Equal(t, "0.3.0", manifest.VersionNumber)

	release, err := manifest.ReleaseFor("linux-amd64")
	require.NoError(t, err)
	require.Equal(t, "labkit-installer-linux-amd64", release.Installer)

	_, err = manifest.ReleaseFor("plan9-386")
	require.ErrorIs(t, err, errUnknownPlatform)
}

// TestRemoteFileURL joins folder URLs without duplicating slashes.
func TestRemoteFileURL(t *testing.T) {
	t.Parallel()

	joined, err := remoteFileURL("https://updates.example.com/labkit/", ManifestFilename)
	require.NoError(t, err)
	require.Equal(t, "https://updates.example.com/labkit/"+ManifestFilename, joined)

	joined, err = remoteFileURL("s3://lab-releases/labkit", "labkit-installer-linux-amd64")
	require.NoError(t, err)
	require.Equal(t, "s3://lab-releases/labkit/labkit-installer-linux-amd64", joined)
}

// TestUpdateNeeded covers the version and checksum decision table.
func TestUpdateNeeded(t *testing.T) {
	t.Parallel()

	t.Run("no local version", func(t *testing.T) {
		t.Parallel()

		b := &runner{
			manifest: &Manifest{VersionNumber: "0.3.0"},
		}

		needed, err := b.updateNeeded(context.Background(), PlatformRelease{Checksum: "AAAA"})
		require.NoError(t, err)
		require.True(t, needed)
	})

	t.Run("older local version", func(t *testing.T) {
		t.Parallel()

		b := &runner{
			manifest:     &Manifest{VersionNumber: "0.3.0"},
			localVersion: "0.2.9",
		}

		needed, err := b.updateNeeded(context.Background(), PlatformRelease{Checksum: "AAAA"})
		require.NoError(t, err)
		require.True(t, needed)
	})

	t.Run("bad manifest version", func(t *testing.T) {
		t.Parallel()

		b := &runner{
			manifest:     &Manifest{VersionNumber: "not-a-version"},
			localVersion: "0.3.0",
		}

		_, err := b.updateNeeded(context.Background(), PlatformRelease{Checksum: "AAAA"})
		require.Error(t, err)
	})
}
