package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Values carries the flat configuration substituted into artifact templates.
type Values struct {
	// LabHome is the lab root directory.
	LabHome string
	// VenvDir is the virtual environment directory.
	VenvDir string
	// NotebooksDir is the Jupyter root directory.
	NotebooksDir string
	// Port is the Jupyter server port.
	Port int
	// Token is the fixed shared secret embedded in the server URL.
	Token string
	// URL is the tokenized Jupyter URL the shortcut redirects to.
	URL string
	// PythonBin is the venv interpreter path.
	PythonBin string
	// ConfigPath is the emitted Jupyter configuration path.
	ConfigPath string
	// LogFile is the Jupyter server log path used by the backup launcher.
	LogFile string
}

const (
	// ArtifactFileMode is applied to plain emitted artifacts.
	ArtifactFileMode os.FileMode = 0o644
	// ScriptFileMode is applied to emitted launcher scripts.
	ScriptFileMode os.FileMode = 0o755
)

// render executes a named template with the sprig function map.
func render(name, text string, values Values) ([]byte, error) {
	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s template: %w", name, err)
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, values); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}

	return buf.Bytes(), nil
}

// JupyterConfig renders the Python-syntax Jupyter server configuration.
func JupyterConfig(values Values) ([]byte, error) {
	return render("jupyter-config", jupyterConfigTemplate, values)
}

// ShortcutHTML renders the HTML redirect page embedding the tokenized URL.
func ShortcutHTML(values Values) ([]byte, error) {
	return render("shortcut", shortcutTemplate, values)
}

// BackupLauncherSh renders the POSIX backup launcher script.
func BackupLauncherSh(values Values) ([]byte, error) {
	return render("backup-launcher-sh", backupLauncherShTemplate, values)
}

// BackupLauncherPS1 renders the PowerShell backup launcher script.
func BackupLauncherPS1(values Values) ([]byte, error) {
	return render("backup-launcher-ps1", backupLauncherPS1Template, values)
}

// WriteArtifact writes rendered bytes to path, overwriting any previous
// version and creating parent directories as needed.
func WriteArtifact(path string, data []byte, mode os.FileMode) error {
	path = filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}

	return nil
}
