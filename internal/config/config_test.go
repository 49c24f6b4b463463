package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestValidate checks required fields, defaults and format validations.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Defaults are filled on an empty config.
	cfg := new(Config)

	err := Validate(cfg)
	require.NoError(t, err)
	require.NotEmpty(t, cfg.LabHome)
	require.Equal(t, filepath.Join(cfg.LabHome, "venv"), cfg.VenvDir)
	require.Equal(t, DefaultJupyterPort, cfg.JupyterPort)
	require.Equal(t, DefaultOllamaURL, cfg.OllamaURL)
	require.Equal(t, Duration(DefaultTimeout), cfg.Timeout)
	require.Equal(t, DefaultPackages, cfg.Packages)

	// Bad port.
	cfg = &Config{JupyterPort: 99999}
	require.Error(t, Validate(cfg))

	// Bad ollama URL.
	cfg = &Config{OllamaURL: "not a url"}
	require.Error(t, Validate(cfg))

	// Dataset without URL.
	cfg = &Config{Datasets: []Dataset{{Name: "cifar10.zip"}}}
	require.Error(t, Validate(cfg))

	// Notebook without name.
	cfg = &Config{Notebooks: []Notebook{{URL: "https://example.com/nb.ipynb"}}}
	require.Error(t, Validate(cfg))

	// Okay with an s3 update folder.
	cfg = &Config{UpdateFolder: "s3://lab-releases/stable"}
	require.NoError(t, Validate(cfg))
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		LabHome:      filepath.Join(dir, "lab"),
		JupyterToken: "fixed-token",
		Datasets: []Dataset{
			{Name: "cifar10.zip", URL: "https://mirror.local/cifar10.zip", Archive: true},
		},
		Notebooks: []Notebook{
			{Name: "intro.ipynb", URL: "https://mirror.local/intro.ipynb"},
		},
		Timeout: Duration(10 * time.Second),
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.LabHome, loaded.LabHome)
	require.Equal(t, cfg.JupyterToken, loaded.JupyterToken)
	require.Equal(t, cfg.Datasets, loaded.Datasets)
	require.Equal(t, cfg.Notebooks, loaded.Notebooks)
	require.Equal(t, Duration(10*time.Second), loaded.Timeout)
}

// TestDurationYAMLForms accepts human-readable duration strings, keeps raw
// nanosecond integers working, and rejects garbage.
func TestDurationYAMLForms(t *testing.T) {
	t.Parallel()

	var cfg Config

	require.NoError(t, yaml.Unmarshal([]byte("timeout: 45s"), &cfg))
	require.Equal(t, Duration(45*time.Second), cfg.Timeout)

	require.NoError(t, yaml.Unmarshal([]byte("timeout: 30000000000"), &cfg))
	require.Equal(t, Duration(30*time.Second), cfg.Timeout)

	require.Error(t, yaml.Unmarshal([]byte("timeout: soonish"), &cfg))

	// Saved settings use the string form.
	data, err := yaml.Marshal(&Config{Timeout: Duration(2 * time.Minute)})
	require.NoError(t, err)
	require.Contains(t, string(data), "timeout: 2m0s")
}

// TestEnsureToken verifies token generation happens once and is stable afterwards.
func TestEnsureToken(t *testing.T) {
	t.Parallel()

	cfg := new(Config)

	generated, err := cfg.EnsureToken()
	require.NoError(t, err)
	require.True(t, generated)
	require.Len(t, cfg.JupyterToken, tokenByteLength*2)

	token := cfg.JupyterToken

	generated, err = cfg.EnsureToken()
	require.NoError(t, err)
	require.False(t, generated)
	require.Equal(t, token, cfg.JupyterToken)
}

// TestDerivedPaths checks path helpers stay anchored at the lab home.
func TestDerivedPaths(t *testing.T) {
	t.Parallel()

	cfg := &Config{LabHome: filepath.Join("/", "opt", "lab")}
	require.NoError(t, Validate(cfg))

	require.Equal(t, filepath.Join(cfg.LabHome, "datasets"), cfg.DatasetsDir())
	require.Equal(t, filepath.Join(cfg.LabHome, "notebooks"), cfg.NotebooksDir())
	require.Equal(t, filepath.Join(cfg.LabHome, "logs", "install.log"), cfg.InstallLogPath())
	require.Equal(t, filepath.Join(cfg.LabHome, DefaultStateFilename), cfg.StatePath())
	require.Contains(t, cfg.JupyterURL(), "token=")
}
