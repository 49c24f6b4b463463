package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

var (
	// errNoPackageManager is returned when no supported package manager exists.
	errNoPackageManager = errors.New("no supported package manager found")
	// errManualInstallRequired asks the user to install Python by hand.
	errManualInstallRequired = errors.New("install Python manually and re-run")
)

// linuxSystemPackages are the apt packages needed before a venv can be built.
//
//nolint:gochecknoglobals // Shared read-only package list.
var linuxSystemPackages = []string{"python3", "python3-venv", "python3-pip"}

// interpreterPresent reports whether the configured Python interpreter is on
// PATH, which makes the system-packages step unnecessary.
func (r *runner) interpreterPresent(_ context.Context) (bool, error) {
	_, err := exec.LookPath(r.cfg.Python)

	return err == nil, nil
}

// installSystemPackages installs the Python toolchain through the OS package
// manager. Only runs when the configured interpreter is missing.
func (r *runner) installSystemPackages(ctx context.Context) error {
	switch runtime.GOOS {
	case "linux":
		if err := installWithApt(ctx); err != nil {
			return err
		}
	case "darwin":
		if err := installWithBrew(ctx); err != nil {
			return err
		}
	default:
		// There is no unattended package manager to rely on here.
		return fmt.Errorf("%s: %w", runtime.GOOS, errManualInstallRequired)
	}

	r.state.MarkStep(StepSystemPackages)

	return nil
}

// installWithApt installs the Python toolchain on Debian-family systems,
// prefixing sudo when not already root.
func installWithApt(ctx context.Context) error {
	if _, err := exec.LookPath("apt-get"); err != nil {
		return fmt.Errorf("apt-get: %w", errNoPackageManager)
	}

	args := append([]string{"install", "-y"}, linuxSystemPackages...)

	if os.Geteuid() != 0 {
		return runCommand(ctx, "sudo", append([]string{"apt-get"}, args...)...)
	}

	return runCommand(ctx, "apt-get", args...)
}

// installWithBrew installs Python through Homebrew.
func installWithBrew(ctx context.Context) error {
	if _, err := exec.LookPath("brew"); err != nil {
		return fmt.Errorf("brew: %w", errNoPackageManager)
	}

	return runCommand(ctx, "brew", "install", "python")
}
