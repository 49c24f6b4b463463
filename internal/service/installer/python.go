package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// venvPresent recognizes an existing virtual environment by its pyvenv.cfg
// marker, the file the venv module itself uses.
func (r *runner) venvPresent(_ context.Context) (bool, error) {
	_, err := os.Stat(filepath.Join(r.cfg.VenvDir, "pyvenv.cfg"))

	return err == nil, nil
}

// createVenv creates the virtual environment with the configured interpreter.
func (r *runner) createVenv(ctx context.Context) error {
	if err := runCommand(ctx, r.cfg.Python, "-m", "venv", r.cfg.VenvDir); err != nil {
		return fmt.Errorf("create virtual environment: %w", err)
	}

	r.state.MarkStep(StepVenv)

	return nil
}

// packagesRecorded reports whether every configured pip package was confirmed
// installed by an earlier run.
func (r *runner) packagesRecorded(_ context.Context) (bool, error) {
	for _, pkg := range r.cfg.Packages {
		if !r.state.PackageInstalled(pkg) {
			return false, nil
		}
	}

	return true, nil
}

// installPackages installs the missing pip packages into the venv in one
// batch. Already recorded packages are not reinstalled, so extending the
// package list in the settings only pulls the additions.
func (r *runner) installPackages(ctx context.Context) error {
	var missing []string

	for _, pkg := range r.cfg.Packages {
		if !r.state.PackageInstalled(pkg) {
			missing = append(missing, pkg)
		}
	}

	if len(missing) == 0 {
		r.state.MarkStep(StepPythonPackages)
		return nil
	}

	python := r.cfg.VenvPython()

	if err := runCommand(ctx, python, "-m", "pip", "install", "--upgrade", "pip"); err != nil {
		return fmt.Errorf("upgrade pip: %w", err)
	}

	args := append([]string{"-m", "pip", "install"}, missing...)
	if err := runCommand(ctx, python, args...); err != nil {
		return fmt.Errorf("install packages: %w", err)
	}

	for _, pkg := range missing {
		r.state.MarkPackage(pkg)
	}

	r.state.MarkStep(StepPythonPackages)

	return nil
}
