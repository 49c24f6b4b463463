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
	"github.com/advml-labs/labkit/internal/service/installer"
)

// writeSettings marshals a settings file into dir and returns its path.
func writeSettings(t *testing.T, dir string, cfg *config.Config) string {
	t.Helper()

	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

// TestInstaller_Run_ProvisionsAndIsIdempotent provisions a lab from an HTTP
// content server and verifies the second run downloads nothing.
//
//nolint:funlen // Integration test requires comprehensive setup and verification.
func TestInstaller_Run_ProvisionsAndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	labHome := filepath.Join(dir, "ai-lab")

	datasetBody := []byte("dataset payload")
	datasetSum := sha512.Sum512(datasetBody)

	var datasetRequests, notebookRequests atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/cifar.bin", func(w http.ResponseWriter, _ *http.Request) {
		datasetRequests.Add(1)
		_, _ = w.Write(datasetBody)
	})
	mux.HandleFunc("/intro.ipynb", func(w http.ResponseWriter, _ *http.Request) {
		notebookRequests.Add(1)
		_, _ = w.Write([]byte(`{"cells":[]}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	settingsPath := writeSettings(t, dir, &config.Config{
		LabHome: labHome,
		Python:  "python3",
		Datasets: []config.Dataset{{
			Name:   "cifar.bin",
			URL:    server.URL + "/cifar.bin",
			SHA512: base64.StdEncoding.EncodeToString(datasetSum[:]),
		}},
		Notebooks: []config.Notebook{{
			Name: "intro.ipynb",
			URL:  server.URL + "/intro.ipynb",
		}},
	})

	options := &installer.Options{
		ConfigPath: settingsPath,
		Quiet:      true,
		SkipSteps: []string{
			installer.StepSystemPackages,
			installer.StepVenv,
			installer.StepPythonPackages,
			installer.StepAutostart,
		},
	}

	require.NoError(t, installer.Run(context.Background(), options))

	// Downloads landed in the lab tree.
	downloaded, err := os.ReadFile(filepath.Join(labHome, "datasets", "cifar.bin"))
	require.NoError(t, err)
	require.Equal(t, datasetBody, downloaded)

	_, err = os.Stat(filepath.Join(labHome, "notebooks", "intro.ipynb"))
	require.NoError(t, err)

	// Artifacts were emitted with the persisted token.
	cfg, err := config.Load(settingsPath)
	require.NoError(t, err)
	require.NotEmpty(t, cfg.JupyterToken)

	jupyterConfig, err := os.ReadFile(cfg.JupyterConfigPath())
	require.NoError(t, err)
	require.Contains(t, string(jupyterConfig), cfg.JupyterToken)

	_, err = os.Stat(cfg.ShortcutPath())
	require.NoError(t, err)

	_, err = os.Stat(cfg.BackupLauncherPath())
	require.NoError(t, err)

	// Progress was recorded.
	_, err = os.Stat(cfg.StatePath())
	require.NoError(t, err)

	// The run was mirrored into the install log.
	installLog, err := os.ReadFile(cfg.InstallLogPath())
	require.NoError(t, err)
	require.Contains(t, string(installLog), "Starting provisioning run")
	require.Contains(t, string(installLog), "Lab environment ready")

	// Second run performs no new downloads and keeps the token stable.
	require.NoError(t, installer.Run(context.Background(), options))
	require.EqualValues(t, 1, datasetRequests.Load())
	require.EqualValues(t, 1, notebookRequests.Load())

	reloaded, err := config.Load(settingsPath)
	require.NoError(t, err)
	require.Equal(t, cfg.JupyterToken, reloaded.JupyterToken)
}

// TestInstaller_Run_DatasetFailureAborts serves a broken dataset and verifies
// the run fails before emitting artifacts.
func TestInstaller_Run_DatasetFailureAborts(t *testing.T) {
	dir := t.TempDir()
	labHome := filepath.Join(dir, "ai-lab")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	settingsPath := writeSettings(t, dir, &config.Config{
		LabHome: labHome,
		Python:  "python3",
		Datasets: []config.Dataset{{
			Name: "cifar.bin",
			URL:  server.URL + "/cifar.bin",
		}},
	})

	options := &installer.Options{
		ConfigPath: settingsPath,
		Quiet:      true,
		SkipSteps: []string{
			installer.StepSystemPackages,
			installer.StepVenv,
			installer.StepPythonPackages,
			installer.StepAutostart,
		},
	}

	require.Error(t, installer.Run(context.Background(), options))

	_, err := os.Stat(filepath.Join(labHome, "jupyter_server_config.py"))
	require.ErrorIs(t, err, os.ErrNotExist)

	// The failure message points users at the install log, so the log must
	// actually contain the failed run.
	installLog, err := os.ReadFile(filepath.Join(labHome, "logs", "install.log"))
	require.NoError(t, err)
	require.Contains(t, string(installLog), "Provisioning failed")
}
