package svcmgr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/coreos/go-systemd/v22/unit"
)

// SystemdManager manages services through systemd. The zero scope is the
// per-user manager; System selects the system bus for units the lab does not
// own (the Ollama runtime service).
type SystemdManager struct {
	// System selects the system manager instead of the user manager.
	System bool
	// unitDir overrides the user unit directory; tests point it at a temp dir.
	unitDir string
}

// errSystemScopeInstall rejects installs into the system manager: the lab
// never needs root-owned units.
var errSystemScopeInstall = errors.New("installing system-scope units is not supported")

// jobModeReplace is the systemd job mode used for start and restart requests.
const jobModeReplace = "replace"

// NewSystemdManager creates a systemd manager for the chosen scope.
func NewSystemdManager(system bool) *SystemdManager {
	return &SystemdManager{System: system}
}

// Install serializes the unit file into the user unit directory, reloads the
// daemon and enables the unit for the default target.
func (m *SystemdManager) Install(ctx context.Context, def Definition) error {
	if m.System {
		return errSystemScopeInstall
	}

	data, err := SerializeUnit(def)
	if err != nil {
		return err
	}

	dir, err := m.userUnitDir()
	if err != nil {
		return err
	}

	if err = os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create unit directory: %w", err)
	}

	unitPath := filepath.Join(dir, unitName(def.Name))
	if err = os.WriteFile(unitPath, data, 0o644); err != nil {
		return fmt.Errorf("write unit file: %w", err)
	}

	if err = m.systemctl(ctx, "daemon-reload"); err != nil {
		return err
	}

	return m.systemctl(ctx, "enable", unitName(def.Name))
}

// Start launches the unit, preferring the dbus API over the systemctl binary.
func (m *SystemdManager) Start(ctx context.Context, name string) error {
	if conn, err := m.connect(ctx); err == nil {
		defer conn.Close()

		return m.runJob(ctx, name, conn.StartUnitContext)
	}

	return m.systemctl(ctx, "start", unitName(name))
}

// Restart relaunches the unit, preferring the dbus API over the systemctl binary.
func (m *SystemdManager) Restart(ctx context.Context, name string) error {
	if conn, err := m.connect(ctx); err == nil {
		defer conn.Close()

		return m.runJob(ctx, name, conn.RestartUnitContext)
	}

	return m.systemctl(ctx, "restart", unitName(name))
}

// Status resolves the coarse unit state from ActiveState.
func (m *SystemdManager) Status(ctx context.Context, name string) (Status, error) {
	if conn, err := m.connect(ctx); err == nil {
		defer conn.Close()

		units, err := conn.ListUnitsByNamesContext(ctx, []string{unitName(name)})
		if err != nil {
			return StatusUnknown, fmt.Errorf("list units: %w", err)
		}

		if len(units) == 0 {
			return StatusUnknown, nil
		}

		return statusFromActiveState(units[0].ActiveState), nil
	}

	// systemctl is-active prints the state and exits non-zero for anything
	// but "active"; the output is still what we want.
	output, _ := m.systemctlOutput(ctx, "is-active", unitName(name))

	return statusFromActiveState(strings.TrimSpace(output)), nil
}

// SerializeUnit renders the unit file body for a service definition.
func SerializeUnit(def Definition) ([]byte, error) {
	options := []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", def.Description),
		unit.NewUnitOption("Service", "ExecStart", commandLine(def.ExecStart)),
		unit.NewUnitOption("Service", "Restart", "on-failure"),
	}

	if def.WorkingDir != "" {
		options = append(options, unit.NewUnitOption("Service", "WorkingDirectory", def.WorkingDir))
	}

	if def.LogFile != "" {
		options = append(options,
			unit.NewUnitOption("Service", "StandardOutput", "append:"+def.LogFile),
			unit.NewUnitOption("Service", "StandardError", "append:"+def.LogFile),
		)
	}

	options = append(options, unit.NewUnitOption("Install", "WantedBy", "default.target"))

	data, err := io.ReadAll(unit.Serialize(options))
	if err != nil {
		return nil, fmt.Errorf("serialize unit: %w", err)
	}

	return data, nil
}

// runJob submits a dbus job and waits for its result or context cancellation.
func (m *SystemdManager) runJob(
	ctx context.Context,
	name string,
	submit func(context.Context, string, string, chan<- string) (int, error),
) error {
	results := make(chan string, 1)

	if _, err := submit(ctx, unitName(name), jobModeReplace, results); err != nil {
		return fmt.Errorf("submit systemd job: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case result := <-results:
		if result != "done" {
			return fmt.Errorf("systemd job for %s finished as %q", name, result)
		}

		return nil
	}
}

// connect opens a dbus connection to the manager of the configured scope.
func (m *SystemdManager) connect(ctx context.Context) (*dbus.Conn, error) {
	if m.System {
		return dbus.NewSystemConnectionContext(ctx)
	}

	return dbus.NewUserConnectionContext(ctx)
}

// systemctl runs the systemctl binary with the scope flag applied.
func (m *SystemdManager) systemctl(ctx context.Context, args ...string) error {
	_, err := m.systemctlOutput(ctx, args...)

	return err
}

// systemctlOutput runs systemctl and returns its combined output.
func (m *SystemdManager) systemctlOutput(ctx context.Context, args ...string) (string, error) {
	if !m.System {
		args = append([]string{"--user"}, args...)
	}

	output, err := exec.CommandContext(ctx, "systemctl", args...).CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("systemctl %s: %w", strings.Join(args, " "), err)
	}

	return string(output), nil
}

// userUnitDir resolves the per-user unit directory.
func (m *SystemdManager) userUnitDir() (string, error) {
	if m.unitDir != "" {
		return m.unitDir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, ".config", "systemd", "user"), nil
}

// unitName appends the .service suffix when the caller passed a bare name.
func unitName(name string) string {
	if strings.HasSuffix(name, ".service") {
		return name
	}

	return name + ".service"
}

// statusFromActiveState maps systemd ActiveState values onto coarse statuses.
func statusFromActiveState(state string) Status {
	switch state {
	case "active", "activating", "reloading":
		return StatusActive
	case "inactive", "deactivating":
		return StatusInactive
	case "failed":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

// commandLine renders an argv as a systemd ExecStart line, quoting arguments
// containing whitespace.
func commandLine(argv []string) string {
	parts := make([]string, 0, len(argv))
	for _, arg := range argv {
		if strings.ContainsAny(arg, " \t") {
			arg = `"` + arg + `"`
		}

		parts = append(parts, arg)
	}

	return strings.Join(parts, " ")
}
