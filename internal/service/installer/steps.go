package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/advml-labs/labkit/internal/config"
	"github.com/advml-labs/labkit/internal/download"
	"github.com/advml-labs/labkit/internal/logger"
	"github.com/advml-labs/labkit/internal/render"
	"github.com/advml-labs/labkit/internal/service/llm"
	"github.com/advml-labs/labkit/internal/service/svcmgr"
)

// Step names of the fixed provisioning sequence, in execution order.
const (
	StepDirectories    = "directories"
	StepSystemPackages = "system-packages"
	StepVenv           = "venv"
	StepPythonPackages = "python-packages"
	StepDatasets       = "datasets"
	StepNotebooks      = "notebooks"
	StepJupyterConfig  = "jupyter-config"
	StepShortcut       = "shortcut"
	StepBackupLauncher = "backup-launcher"
	StepAutostart      = "autostart"
	StepRuntime        = "ollama"
)

// autostartServiceName registers the Jupyter server with the OS service manager.
const autostartServiceName = "labkit-jupyter"

var (
	// errChecksumMismatch is returned when a dataset fails verification.
	errChecksumMismatch = errors.New("dataset checksum mismatch")
	// errNotebooksIncomplete summarizes partially failed notebook downloads.
	errNotebooksIncomplete = errors.New("some notebooks failed to download")
	// errRuntimeMissing is returned when the LLM runtime CLI is not installed.
	errRuntimeMissing = errors.New("ollama binary not found on PATH")
	// errNoServiceManager is returned when autostart has no platform adapter.
	errNoServiceManager = errors.New("no service manager available")
)

// buildSteps assembles the ordered sequence. The runtime step is present only
// when models are configured.
func (r *runner) buildSteps() []Step {
	steps := []Step{
		{Name: StepDirectories, Required: true, Check: r.directoriesPresent, Run: r.createDirectories},
		{Name: StepSystemPackages, Required: true, Check: r.interpreterPresent, Run: r.installSystemPackages},
		{Name: StepVenv, Required: true, Check: r.venvPresent, Run: r.createVenv},
		{Name: StepPythonPackages, Required: true, Check: r.packagesRecorded, Run: r.installPackages},
		{Name: StepDatasets, Required: true, Check: r.datasetsPresent, Run: r.downloadDatasets},
		{Name: StepNotebooks, Required: false, Check: r.notebooksPresent, Run: r.downloadNotebooks},
		r.artifactStep(StepJupyterConfig, r.cfg.JupyterConfigPath(), render.ArtifactFileMode, render.JupyterConfig),
		r.artifactStep(StepShortcut, r.cfg.ShortcutPath(), render.ArtifactFileMode, render.ShortcutHTML),
		r.artifactStep(StepBackupLauncher, r.cfg.BackupLauncherPath(), render.ScriptFileMode, backupLauncherRenderer()),
		{Name: StepAutostart, Required: false, Check: r.autostartActive, Run: r.installAutostart},
	}

	if len(r.cfg.OllamaModels) > 0 {
		steps = append(steps, Step{
			Name:     StepRuntime,
			Required: false,
			Check:    r.runtimeProvisioned,
			Run:      r.ensureRuntime,
		})
	}

	return steps
}

// labDirectories lists the directory tree of the lab home.
func (r *runner) labDirectories() []string {
	return []string{
		r.cfg.LabHome,
		r.cfg.DatasetsDir(),
		r.cfg.NotebooksDir(),
		r.cfg.LogsDir(),
		r.cfg.BinDir(),
	}
}

func (r *runner) directoriesPresent(_ context.Context) (bool, error) {
	for _, dir := range r.labDirectories() {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return false, nil
		}
	}

	return true, nil
}

func (r *runner) createDirectories(_ context.Context) error {
	for _, dir := range r.labDirectories() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	r.state.MarkStep(StepDirectories)

	return nil
}

// datasetsPresent reports whether every required dataset is already on disk
// with a matching checksum.
func (r *runner) datasetsPresent(_ context.Context) (bool, error) {
	for _, ds := range r.cfg.Datasets {
		if !r.datasetSatisfied(ds) {
			return false, nil
		}
	}

	return true, nil
}

// datasetSatisfied checks one dataset against disk and recorded state.
// A file present without a state record is re-verified and recorded, so
// machines provisioned by earlier tool versions are not re-downloaded.
func (r *runner) datasetSatisfied(ds config.Dataset) bool {
	destPath := filepath.Join(r.cfg.DatasetsDir(), ds.Name)

	if _, err := os.Stat(destPath); err != nil {
		return false
	}

	if ds.SHA512 == "" {
		return true
	}

	if r.state.DatasetVerified(ds.Name, ds.SHA512) {
		return true
	}

	matches, err := download.VerifyFile(destPath, ds.SHA512)
	if err != nil || !matches {
		return false
	}

	r.state.MarkDataset(ds.Name, ds.SHA512)

	return true
}

// downloadDatasets fetches every required dataset. Any failure is fatal for
// the run: the course cannot proceed without its data.
func (r *runner) downloadDatasets(ctx context.Context) error {
	for _, ds := range r.cfg.Datasets {
		if r.datasetSatisfied(ds) {
			logger.InfoKV(ctx, "Dataset already present", "dataset", ds.Name)
			continue
		}

		if err := r.fetchDataset(ctx, ds); err != nil {
			return fmt.Errorf("dataset %s: %w", ds.Name, err)
		}
	}

	r.state.MarkStep(StepDatasets)

	return nil
}

// fetchDataset downloads, verifies, optionally extracts and records one dataset.
func (r *runner) fetchDataset(ctx context.Context, ds config.Dataset) error {
	destPath := filepath.Join(r.cfg.DatasetsDir(), ds.Name)

	logger.InfoKV(ctx, "Downloading dataset", "dataset", ds.Name, "url", ds.URL)

	if err := r.fetcher.Fetch(ctx, ds.URL, destPath); err != nil {
		return err
	}

	if ds.SHA512 != "" {
		matches, err := download.VerifyFile(destPath, ds.SHA512)
		if err != nil {
			return err
		}

		if !matches {
			return errChecksumMismatch
		}
	}

	if ds.Archive {
		if err := download.ExtractZip(destPath, r.cfg.DatasetsDir()); err != nil {
			return fmt.Errorf("extract: %w", err)
		}
	}

	r.state.MarkDataset(ds.Name, ds.SHA512)

	return nil
}

func (r *runner) notebooksPresent(_ context.Context) (bool, error) {
	for _, nb := range r.cfg.Notebooks {
		if _, err := os.Stat(filepath.Join(r.cfg.NotebooksDir(), nb.Name)); err != nil {
			return false, nil
		}
	}

	return true, nil
}

// downloadNotebooks fetches course notebooks. Every notebook is attempted even
// when earlier ones fail; the summarized error degrades to a warning because
// the step is optional.
func (r *runner) downloadNotebooks(ctx context.Context) error {
	var failed int

	for _, nb := range r.cfg.Notebooks {
		destPath := filepath.Join(r.cfg.NotebooksDir(), nb.Name)
		if _, err := os.Stat(destPath); err == nil {
			logger.InfoKV(ctx, "Notebook already present", "notebook", nb.Name)
			continue
		}

		logger.InfoKV(ctx, "Downloading notebook", "notebook", nb.Name, "url", nb.URL)

		if err := r.fetcher.Fetch(ctx, nb.URL, destPath); err != nil {
			logger.WarnKV(ctx, "Notebook download failed", "notebook", nb.Name, "error", err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d: %w", failed, len(r.cfg.Notebooks), errNotebooksIncomplete)
	}

	r.state.MarkStep(StepNotebooks)

	return nil
}

// artifactStep builds a template-emission step. The check compares the file on
// disk against a fresh rendering, so re-runs rewrite artifacts only after the
// settings actually changed.
func (r *runner) artifactStep(
	name, path string,
	mode os.FileMode,
	renderFn func(render.Values) ([]byte, error),
) Step {
	return Step{
		Name:     name,
		Required: true,
		Check: func(_ context.Context) (bool, error) {
			existing, err := os.ReadFile(filepath.Clean(path))
			if err != nil {
				return false, nil
			}

			want, err := renderFn(r.renderValues())
			if err != nil {
				return false, err
			}

			return bytes.Equal(existing, want), nil
		},
		Run: func(_ context.Context) error {
			data, err := renderFn(r.renderValues())
			if err != nil {
				return err
			}

			if err = render.WriteArtifact(path, data, mode); err != nil {
				return err
			}

			r.state.MarkStep(name)

			return nil
		},
	}
}

// backupLauncherRenderer picks the launcher script flavor of the current OS.
func backupLauncherRenderer() func(render.Values) ([]byte, error) {
	if runtime.GOOS == "windows" {
		return render.BackupLauncherPS1
	}

	return render.BackupLauncherSh
}

// renderValues flattens the settings into the template substitution values.
func (r *runner) renderValues() render.Values {
	return render.Values{
		LabHome:      r.cfg.LabHome,
		VenvDir:      r.cfg.VenvDir,
		NotebooksDir: r.cfg.NotebooksDir(),
		Port:         r.cfg.JupyterPort,
		Token:        r.cfg.JupyterToken,
		URL:          r.cfg.JupyterURL(),
		PythonBin:    r.cfg.VenvPython(),
		ConfigPath:   r.cfg.JupyterConfigPath(),
		LogFile:      filepath.Join(r.cfg.LogsDir(), "jupyter.log"),
	}
}

func (r *runner) autostartActive(ctx context.Context) (bool, error) {
	if r.manager == nil {
		return false, nil
	}

	status, err := r.manager.Status(ctx, autostartServiceName)
	if err != nil {
		return false, nil //nolint:nilerr // Unknown status means the step must run.
	}

	return status == svcmgr.StatusActive, nil
}

// installAutostart registers the Jupyter server with the OS service manager
// and starts it.
func (r *runner) installAutostart(ctx context.Context) error {
	if r.manager == nil {
		return errNoServiceManager
	}

	def := svcmgr.Definition{
		Name:        autostartServiceName,
		Description: "AI lab Jupyter server",
		ExecStart: []string{
			r.cfg.VenvPython(),
			"-m", "jupyter", "lab",
			"--config", r.cfg.JupyterConfigPath(),
		},
		WorkingDir: r.cfg.NotebooksDir(),
		LogFile:    filepath.Join(r.cfg.LogsDir(), "jupyter.log"),
	}

	if err := r.manager.Install(ctx, def); err != nil {
		return fmt.Errorf("install service: %w", err)
	}

	if err := r.manager.Start(ctx, autostartServiceName); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	r.state.MarkStep(StepAutostart)

	return nil
}

// runtimeProvisioned reports whether the LLM runtime answers and already has
// every configured model.
func (r *runner) runtimeProvisioned(ctx context.Context) (bool, error) {
	client := llm.NewClient(r.cfg.OllamaURL, time.Duration(r.cfg.Timeout))

	if err := client.Ready(ctx); err != nil {
		return false, nil //nolint:nilerr // A silent runtime means the step must run.
	}

	installed, err := client.Models(ctx)
	if err != nil {
		return false, nil //nolint:nilerr // Same as above.
	}

	for _, model := range r.cfg.OllamaModels {
		if !llm.HasModel(installed, model) {
			return false, nil
		}
	}

	return true, nil
}

// ensureRuntime waits for the LLM runtime with the restart-once policy and
// pulls the missing models. Failures degrade to warnings: the lab works
// without local models, the LLM exercises just stay unavailable.
func (r *runner) ensureRuntime(ctx context.Context) error {
	if !llm.BinaryInstalled() {
		return errRuntimeMissing
	}

	client := llm.NewClient(r.cfg.OllamaURL, time.Duration(r.cfg.Timeout))

	if err := llm.EnsureReady(ctx, client, restartRuntime, llm.WaitOptions{}); err != nil {
		return err
	}

	installed, err := client.Models(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}

	for _, model := range r.cfg.OllamaModels {
		if llm.HasModel(installed, model) {
			logger.InfoKV(ctx, "Model already pulled", "model", model)
			continue
		}

		logger.InfoKV(ctx, "Pulling model", "model", model)

		if err = llm.PullModel(ctx, model); err != nil {
			return fmt.Errorf("pull model %s: %w", model, err)
		}
	}

	r.state.MarkStep(StepRuntime)

	return nil
}

// restartRuntime performs the single explicit restart of the readiness
// contract. On Linux the runtime ships as a system-scope systemd unit;
// elsewhere the server is relaunched directly.
func restartRuntime(ctx context.Context) error {
	if runtime.GOOS == "linux" {
		return svcmgr.NewSystemdManager(true).Restart(ctx, "ollama")
	}

	return llm.StartServer()
}
