package integration

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/advml-labs/labkit/internal/config"
	"github.com/advml-labs/labkit/internal/service/bootstrap"
)

// TestBootstrap_Run_FetchesAndApplies serves a manifest and installer over
// HTTP, applies the binary and verifies the second run skips the download on
// a matching checksum.
//
//nolint:funlen // Integration test requires comprehensive setup and verification.
func TestBootstrap_Run_FetchesAndApplies(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	installerBody := []byte("#!/bin/sh\necho installer\n")
	installerSum := sha512.Sum512(installerBody)
	artifactName := "labkit-installer-" + bootstrap.PlatformKey()

	manifest := &bootstrap.Manifest{
		VersionNumber: "9.9.9",
		Platforms: map[string]bootstrap.PlatformRelease{
			bootstrap.PlatformKey(): {
				Installer: artifactName,
				Checksum:  base64.StdEncoding.EncodeToString(installerSum[:]),
			},
		},
	}

	manifestBytes, err := yaml.Marshal(manifest)
	require.NoError(t, err)

	var artifactRequests atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/"+bootstrap.ManifestFilename, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(manifestBytes)
	})
	mux.HandleFunc("/"+artifactName, func(w http.ResponseWriter, _ *http.Request) {
		artifactRequests.Add(1)
		_, _ = w.Write(installerBody)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	settings := &config.Config{
		LabHome:      filepath.Join(dir, "ai-lab"),
		Python:       "python3",
		UpdateFolder: server.URL,
	}

	settingsData, err := yaml.Marshal(settings)
	require.NoError(t, err)

	settingsPath := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, os.WriteFile(settingsPath, settingsData, 0o600))

	options := &bootstrap.Options{
		ConfigPath:  settingsPath,
		SkipInstall: true,
	}

	require.NoError(t, bootstrap.Run(context.Background(), options))

	// The installer binary landed next to the bootstrap.
	applied, err := os.ReadFile(bootstrap.InstallerExecutable())
	require.NoError(t, err)
	require.Equal(t, installerBody, applied)

	// The marker was cleaned up.
	_, err = os.Stat(bootstrap.MarkerFilename)
	require.ErrorIs(t, err, os.ErrNotExist)

	// Second run: checksum matches, no re-download.
	require.NoError(t, bootstrap.Run(context.Background(), options))
	require.EqualValues(t, 1, artifactRequests.Load())
}

// TestBootstrap_Run_RejectsChecksumMismatch refuses to apply a tampered
// artifact.
func TestBootstrap_Run_RejectsChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	expectedSum := sha512.Sum512([]byte("published artifact"))
	artifactName := "labkit-installer-" + bootstrap.PlatformKey()

	manifest := &bootstrap.Manifest{
		VersionNumber: "9.9.9",
		Platforms: map[string]bootstrap.PlatformRelease{
			bootstrap.PlatformKey(): {
				Installer: artifactName,
				Checksum:  base64.StdEncoding.EncodeToString(expectedSum[:]),
			},
		},
	}

	manifestBytes, err := yaml.Marshal(manifest)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/"+bootstrap.ManifestFilename, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(manifestBytes)
	})
	mux.HandleFunc("/"+artifactName, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("tampered artifact"))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	settings := &config.Config{
		LabHome:      filepath.Join(dir, "ai-lab"),
		Python:       "python3",
		UpdateFolder: server.URL,
	}

	settingsData, err := yaml.Marshal(settings)
	require.NoError(t, err)

	settingsPath := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, os.WriteFile(settingsPath, settingsData, 0o600))

	options := &bootstrap.Options{
		ConfigPath:  settingsPath,
		SkipInstall: true,
	}

	require.Error(t, bootstrap.Run(context.Background(), options))
}

// chdir switches the working directory for the duration of the test and
// restores the original directory on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
