package svcmgr

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Status is the coarse service state shared by all platform managers.
type Status string

const (
	// StatusActive means the service is running.
	StatusActive Status = "active"
	// StatusInactive means the service is registered but not running.
	StatusInactive Status = "inactive"
	// StatusFailed means the service manager reports a failure.
	StatusFailed Status = "failed"
	// StatusUnknown means the state could not be determined.
	StatusUnknown Status = "unknown"
)

// Definition describes a service to install, independent of the platform.
type Definition struct {
	// Name is the service identifier (unit name, agent label, task name).
	Name string
	// Description is the human-readable purpose shown by the service manager.
	Description string
	// ExecStart is the command line started by the service manager.
	ExecStart []string
	// WorkingDir is the working directory of the started process.
	WorkingDir string
	// LogFile receives stdout/stderr where the platform supports redirection.
	LogFile string
}

// Manager abstracts the OS-native service manager. The installer uses it to
// register the Jupyter autostart entry, and the readiness poller uses it for
// the single explicit restart of the LLM runtime.
type Manager interface {
	// Install writes the service definition to its platform location and
	// registers it, overwriting any previous version.
	Install(ctx context.Context, def Definition) error
	// Start launches the named service.
	Start(ctx context.Context, name string) error
	// Restart stops and relaunches the named service.
	Restart(ctx context.Context, name string) error
	// Status reports the coarse state of the named service.
	Status(ctx context.Context, name string) (Status, error)
}

var (
	// ErrUnsupportedOS indicates the current OS has no service manager adapter.
	ErrUnsupportedOS = errors.New("unsupported operating system")
	// errEmptyExecStart rejects definitions without a command line.
	errEmptyExecStart = errors.New("service definition has no command")
)

// ForPlatform returns the service manager matching the current OS:
// systemd (user scope) on Linux, launchd on macOS, Task Scheduler on Windows.
func ForPlatform() (Manager, error) {
	switch osName := strings.ToLower(runtime.GOOS); {
	case strings.Contains(osName, "linux"):
		return NewSystemdManager(false), nil
	case strings.Contains(osName, "darwin"):
		return NewLaunchdManager(""), nil
	case strings.Contains(osName, "windows"):
		return NewTaskSchedulerManager(""), nil
	default:
		return nil, fmt.Errorf("%s: %w", runtime.GOOS, ErrUnsupportedOS)
	}
}
