package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that round-trips through YAML in its string
// form ("30s", "2m"), which is what a hand-edited settings file contains.
// Plain integers are accepted as nanoseconds.
type Duration time.Duration

// MarshalYAML serializes the duration in its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML parses either a duration string or a raw nanosecond count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err == nil {
		*d = Duration(parsed)
		return nil
	}

	nanos, numErr := strconv.ParseInt(value.Value, 10, 64)
	if numErr != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}

	*d = Duration(nanos)

	return nil
}

// Dataset describes a required lab artifact downloaded into the datasets folder.
type Dataset struct {
	// Name is the target filename inside the datasets folder.
	Name string `yaml:"name"`
	// URL is the http(s) or s3 location of the artifact.
	URL string `yaml:"url"`
	// SHA512 is an optional base64-encoded checksum verified after download.
	SHA512 string `yaml:"sha512,omitempty"`
	// Archive marks zip bundles that are extracted next to the download.
	Archive bool `yaml:"archive,omitempty"`
}

// Notebook describes an optional course notebook. Download failures are advisory.
type Notebook struct {
	// Name is the target filename inside the notebooks folder.
	Name string `yaml:"name"`
	// URL is the http(s) or s3 location of the notebook.
	URL string `yaml:"url"`
}

// Config holds the provisioning parameters shared by the labkit binaries.
type Config struct {
	// LabHome is the root directory of the lab environment.
	LabHome string `yaml:"lab_home"`
	// Python is the interpreter used to create the virtual environment.
	Python string `yaml:"python"`
	// VenvDir is the virtual environment path; defaults to <lab_home>/venv.
	VenvDir string `yaml:"venv_dir,omitempty"`
	// Packages is the ordered pip package list installed into the venv.
	Packages []string `yaml:"packages"`
	// Datasets are required artifacts; a failed download aborts the run.
	Datasets []Dataset `yaml:"datasets"`
	// Notebooks are optional artifacts; failures only produce warnings.
	Notebooks []Notebook `yaml:"notebooks"`
	// JupyterPort is the local port the Jupyter server listens on.
	JupyterPort int `yaml:"jupyter_port"`
	// JupyterToken is the fixed shared secret embedded in the server URL.
	// Generated and persisted on first run when empty.
	JupyterToken string `yaml:"jupyter_token"`
	// OllamaModels are models pulled into the local LLM runtime.
	// An empty list disables the runtime steps entirely.
	OllamaModels []string `yaml:"ollama_models,omitempty"`
	// OllamaURL is the runtime status endpoint used for readiness polling.
	OllamaURL string `yaml:"ollama_url"`
	// UpdateFolder is the remote folder hosting the bootstrap manifest and
	// installer binaries. Accepts http(s) and s3 URLs.
	UpdateFolder string `yaml:"update_folder,omitempty"`
	// Timeout is the duration for individual network operations, covering
	// dataset and notebook downloads as well as runtime readiness probes.
	Timeout Duration `yaml:"timeout"`
}

const (
	// DefaultConfigFilename is the default filename for provisioning settings.
	DefaultConfigFilename = "labkit-settings.yaml"

	// DefaultStateFilename is the default filename for the provisioning state JSON.
	DefaultStateFilename = "labkit-state.json"

	// DefaultLabDirname is the lab root created under the user home directory.
	DefaultLabDirname = "ai-lab"

	// DefaultJupyterPort is the local Jupyter server port.
	DefaultJupyterPort = 8888

	// DefaultOllamaURL is the status endpoint of a locally running Ollama.
	DefaultOllamaURL = "http://127.0.0.1:11434"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 30 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// tokenByteLength is the entropy of a generated Jupyter token.
	tokenByteLength = 24

	// maxPortNumber is the highest valid TCP port.
	maxPortNumber = 65535
)

// DefaultPackages is the pip package set of the adversarial-robustness course.
//
//nolint:gochecknoglobals // Shared read-only default used by config and docs.
var DefaultPackages = []string{
	"numpy",
	"pandas",
	"scikit-learn",
	"matplotlib",
	"torch",
	"torchvision",
	"adversarial-robustness-toolbox",
	"foolbox",
	"jupyterlab",
	"notebook",
}

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidPort is returned when the Jupyter port is outside the TCP range.
	errInvalidPort = errors.New("jupyter port must be between 1 and 65535")
	// errDatasetIncomplete is returned when a dataset entry misses name or URL.
	errDatasetIncomplete = errors.New("dataset entries require both name and url")
	// errNotebookIncomplete is returned when a notebook entry misses name or URL.
	errNotebookIncomplete = errors.New("notebook entries require both name and url")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions: the file embeds the Jupyter token.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills defaults.
//
//nolint:cyclop // Linear field-by-field validation reads better unsplit.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.LabHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}

		cfg.LabHome = filepath.Join(home, DefaultLabDirname)
	}

	if cfg.Python == "" {
		cfg.Python = defaultPythonInterpreter()
	}

	if cfg.VenvDir == "" {
		cfg.VenvDir = filepath.Join(cfg.LabHome, "venv")
	}

	if len(cfg.Packages) == 0 {
		cfg.Packages = append([]string(nil), DefaultPackages...)
	}

	if cfg.JupyterPort == 0 {
		cfg.JupyterPort = DefaultJupyterPort
	}

	if cfg.JupyterPort < 1 || cfg.JupyterPort > maxPortNumber {
		return errInvalidPort
	}

	if cfg.OllamaURL == "" {
		cfg.OllamaURL = DefaultOllamaURL
	}

	if _, err := url.ParseRequestURI(cfg.OllamaURL); err != nil {
		return fmt.Errorf("invalid ollama URL: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = Duration(DefaultTimeout)
	}

	for _, ds := range cfg.Datasets {
		if ds.Name == "" || ds.URL == "" {
			return errDatasetIncomplete
		}
	}

	for _, nb := range cfg.Notebooks {
		if nb.Name == "" || nb.URL == "" {
			return errNotebookIncomplete
		}
	}

	if cfg.UpdateFolder == "" {
		return nil
	}

	if _, err := url.Parse(cfg.UpdateFolder); err != nil {
		return fmt.Errorf("invalid update folder URI: %w", err)
	}

	return nil
}

// EnsureToken generates and stores a Jupyter token when none is configured.
// Returns true when a new token was generated.
func (c *Config) EnsureToken() (bool, error) {
	if c.JupyterToken != "" {
		return false, nil
	}

	raw := make([]byte, tokenByteLength)
	if _, err := rand.Read(raw); err != nil {
		return false, fmt.Errorf("generate token: %w", err)
	}

	c.JupyterToken = hex.EncodeToString(raw)

	return true, nil
}

// DatasetsDir returns the directory holding required dataset downloads.
func (c *Config) DatasetsDir() string {
	return filepath.Join(c.LabHome, "datasets")
}

// NotebooksDir returns the directory holding course notebooks.
func (c *Config) NotebooksDir() string {
	return filepath.Join(c.LabHome, "notebooks")
}

// LogsDir returns the directory holding installer logs.
func (c *Config) LogsDir() string {
	return filepath.Join(c.LabHome, "logs")
}

// BinDir returns the directory holding emitted launcher artifacts.
func (c *Config) BinDir() string {
	return filepath.Join(c.LabHome, "bin")
}

// InstallLogPath returns the path of the installer log file.
func (c *Config) InstallLogPath() string {
	return filepath.Join(c.LogsDir(), "install.log")
}

// StatePath returns the path of the provisioning state JSON.
func (c *Config) StatePath() string {
	return filepath.Join(c.LabHome, DefaultStateFilename)
}

// JupyterConfigPath returns the path of the emitted Jupyter configuration file.
func (c *Config) JupyterConfigPath() string {
	return filepath.Join(c.LabHome, "jupyter_server_config.py")
}

// ShortcutPath returns the path of the emitted HTML redirect page.
func (c *Config) ShortcutPath() string {
	return filepath.Join(c.LabHome, "open-lab.html")
}

// BackupLauncherPath returns the path of the emitted backup launcher script.
func (c *Config) BackupLauncherPath() string {
	name := "start-lab.sh"
	if runtime.GOOS == "windows" {
		name = "start-lab.ps1"
	}

	return filepath.Join(c.BinDir(), name)
}

// VenvPython returns the interpreter path inside the virtual environment.
func (c *Config) VenvPython() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(c.VenvDir, "Scripts", "python.exe")
	}

	return filepath.Join(c.VenvDir, "bin", "python")
}

// JupyterURL returns the tokenized local URL of the Jupyter server.
func (c *Config) JupyterURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/lab?token=%s", c.JupyterPort, c.JupyterToken)
}

// defaultPythonInterpreter picks the conventional interpreter name per OS.
func defaultPythonInterpreter() string {
	if runtime.GOOS == "windows" {
		return "python"
	}

	return "python3"
}
