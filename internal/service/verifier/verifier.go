package verifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/advml-labs/labkit/internal/config"
	"github.com/advml-labs/labkit/internal/download"
	"github.com/advml-labs/labkit/internal/logger"
	"github.com/advml-labs/labkit/internal/service/llm"
	"github.com/advml-labs/labkit/internal/service/svcmgr"
)

// Options bundles the arguments of the verification command.
type Options struct {
	// ConfigPath is the path to the settings file.
	ConfigPath string
}

// Result is the outcome of one verification check.
type Result struct {
	// Name identifies the check in the report.
	Name string
	// Required marks checks whose failure fails the whole verification.
	Required bool
	// OK reports whether the check passed.
	OK bool
	// Details is a short human-readable explanation.
	Details string
}

// ErrVerificationFailed is returned when any required check failed.
var ErrVerificationFailed = errors.New("verification failed")

// check pairs a named probe with its tier.
type check struct {
	name     string
	required bool
	probe    func(ctx context.Context) (bool, string)
}

// verifier carries the shared dependencies of the checks.
type verifier struct {
	cfg     *config.Config
	manager svcmgr.Manager
}

// Run inspects the provisioned lab and prints a report table. Returns
// ErrVerificationFailed when a required check did not pass, so the process
// exits non-zero for scripted use.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "labkit-verifier")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	manager, err := svcmgr.ForPlatform()
	if err != nil {
		logger.WarnKV(ctx, "No service manager on this platform", "error", err)
	}

	v := &verifier{cfg: cfg, manager: manager}
	results := v.runChecks(ctx)

	renderReport(os.Stdout, results)

	for _, result := range results {
		if result.Required && !result.OK {
			return ErrVerificationFailed
		}
	}

	logger.Info(ctx, "All required checks passed")

	return nil
}

// runChecks executes every check and collects the results.
func (v *verifier) runChecks(ctx context.Context) []Result {
	results := make([]Result, 0, len(v.checks()))

	for _, c := range v.checks() {
		ok, details := c.probe(ctx)
		results = append(results, Result{
			Name:     c.name,
			Required: c.required,
			OK:       ok,
			Details:  details,
		})
	}

	return results
}

// checks lists the verification probes in report order. Runtime checks are
// present only when models are configured, matching the installer sequence.
func (v *verifier) checks() []check {
	checks := []check{
		{name: "lab directories", required: true, probe: v.checkDirectories},
		{name: "virtual environment", required: true, probe: v.checkVenv},
		{name: "datasets", required: true, probe: v.checkDatasets},
		{name: "notebooks", required: false, probe: v.checkNotebooks},
		{name: "jupyter config", required: true, probe: fileProbe(v.cfg.JupyterConfigPath())},
		{name: "shortcut page", required: false, probe: fileProbe(v.cfg.ShortcutPath())},
		{name: "backup launcher", required: false, probe: fileProbe(v.cfg.BackupLauncherPath())},
		{name: "autostart service", required: false, probe: v.checkAutostart},
		{name: "jupyter server", required: false, probe: v.checkJupyterServer},
	}

	if len(v.cfg.OllamaModels) > 0 {
		checks = append(checks,
			check{name: "ollama process", required: false, probe: processProbe("ollama")},
			check{name: "ollama models", required: false, probe: v.checkModels},
		)
	}

	return checks
}

func (v *verifier) checkDirectories(_ context.Context) (bool, string) {
	dirs := []string{
		v.cfg.LabHome,
		v.cfg.DatasetsDir(),
		v.cfg.NotebooksDir(),
		v.cfg.LogsDir(),
		v.cfg.BinDir(),
	}

	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return false, fmt.Sprintf("missing %s", dir)
		}
	}

	return true, fmt.Sprintf("%d directories present", len(dirs))
}

func (v *verifier) checkVenv(_ context.Context) (bool, string) {
	if _, err := os.Stat(filepath.Join(v.cfg.VenvDir, "pyvenv.cfg")); err != nil {
		return false, "pyvenv.cfg missing"
	}

	if _, err := os.Stat(v.cfg.VenvPython()); err != nil {
		return false, "venv interpreter missing"
	}

	return true, v.cfg.VenvDir
}

// checkDatasets re-verifies every dataset checksum against the file on disk,
// catching corruption that happened after provisioning.
func (v *verifier) checkDatasets(_ context.Context) (bool, string) {
	for _, ds := range v.cfg.Datasets {
		path := filepath.Join(v.cfg.DatasetsDir(), ds.Name)

		if _, err := os.Stat(path); err != nil {
			return false, fmt.Sprintf("%s missing", ds.Name)
		}

		if ds.SHA512 == "" {
			continue
		}

		matches, err := download.VerifyFile(path, ds.SHA512)
		if err != nil {
			return false, fmt.Sprintf("%s: %v", ds.Name, err)
		}

		if !matches {
			return false, fmt.Sprintf("%s checksum mismatch", ds.Name)
		}
	}

	return true, fmt.Sprintf("%d datasets verified", len(v.cfg.Datasets))
}

func (v *verifier) checkNotebooks(_ context.Context) (bool, string) {
	var missing []string

	for _, nb := range v.cfg.Notebooks {
		if _, err := os.Stat(filepath.Join(v.cfg.NotebooksDir(), nb.Name)); err != nil {
			missing = append(missing, nb.Name)
		}
	}

	if len(missing) > 0 {
		return false, "missing " + strings.Join(missing, ", ")
	}

	return true, fmt.Sprintf("%d notebooks present", len(v.cfg.Notebooks))
}

func (v *verifier) checkAutostart(ctx context.Context) (bool, string) {
	if v.manager == nil {
		return false, "no service manager on this platform"
	}

	status, err := v.manager.Status(ctx, "labkit-jupyter")
	if err != nil {
		return false, err.Error()
	}

	return status == svcmgr.StatusActive, string(status)
}

// checkJupyterServer probes the local server port without the token; any HTTP
// answer means the server is up.
func (v *verifier) checkJupyterServer(ctx context.Context) (bool, string) {
	serverURL := fmt.Sprintf("http://127.0.0.1:%d/api", v.cfg.JupyterPort)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL, http.NoBody)
	if err != nil {
		return false, err.Error()
	}

	client := &http.Client{Timeout: time.Duration(v.cfg.Timeout)}

	response, err := client.Do(req)
	if err != nil {
		return false, "not answering"
	}

	_ = response.Body.Close()

	return true, fmt.Sprintf("answering on port %d", v.cfg.JupyterPort)
}

func (v *verifier) checkModels(ctx context.Context) (bool, string) {
	client := llm.NewClient(v.cfg.OllamaURL, time.Duration(v.cfg.Timeout))

	if err := client.Ready(ctx); err != nil {
		return false, "runtime not answering"
	}

	installed, err := client.Models(ctx)
	if err != nil {
		return false, err.Error()
	}

	var missing []string

	for _, model := range v.cfg.OllamaModels {
		if !llm.HasModel(installed, model) {
			missing = append(missing, model)
		}
	}

	if len(missing) > 0 {
		return false, "missing " + strings.Join(missing, ", ")
	}

	return true, fmt.Sprintf("%d models present", len(v.cfg.OllamaModels))
}

// fileProbe builds a probe asserting a file exists.
func fileProbe(path string) func(ctx context.Context) (bool, string) {
	return func(_ context.Context) (bool, string) {
		if _, err := os.Stat(path); err != nil {
			return false, "missing"
		}

		return true, path
	}
}

// processProbe builds a probe asserting a process with the given executable
// name is running.
func processProbe(executable string) func(ctx context.Context) (bool, string) {
	return func(_ context.Context) (bool, string) {
		processes, err := ps.Processes()
		if err != nil {
			return false, err.Error()
		}

		for _, process := range processes {
			name := strings.TrimSuffix(process.Executable(), ".exe")
			if name == executable {
				return true, fmt.Sprintf("pid %d", process.Pid())
			}
		}

		return false, "not running"
	}
}
