package svcmgr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"
)

// LaunchdManager manages per-user LaunchAgents on macOS.
type LaunchdManager struct {
	// agentsDir is the LaunchAgents directory; empty means the default under
	// the user home.
	agentsDir string
}

// launchAgentTemplate is the plist body generated for a service definition.
const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{ .Name }}</string>
	<key>ProgramArguments</key>
	<array>
{{- range .ExecStart }}
		<string>{{ . }}</string>
{{- end }}
	</array>
{{- if .WorkingDir }}
	<key>WorkingDirectory</key>
	<string>{{ .WorkingDir }}</string>
{{- end }}
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
{{- if .LogFile }}
	<key>StandardOutPath</key>
	<string>{{ .LogFile }}</string>
	<key>StandardErrorPath</key>
	<string>{{ .LogFile }}</string>
{{- end }}
</dict>
</plist>
`

// NewLaunchdManager creates a launchd manager. An empty agentsDir selects
// ~/Library/LaunchAgents.
func NewLaunchdManager(agentsDir string) *LaunchdManager {
	return &LaunchdManager{agentsDir: agentsDir}
}

// Install writes the agent plist and loads it.
func (m *LaunchdManager) Install(ctx context.Context, def Definition) error {
	data, err := SerializeLaunchAgent(def)
	if err != nil {
		return err
	}

	dir, err := m.resolveAgentsDir()
	if err != nil {
		return err
	}

	if err = os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create agents directory: %w", err)
	}

	plistPath := filepath.Join(dir, def.Name+".plist")
	if err = os.WriteFile(plistPath, data, 0o644); err != nil {
		return fmt.Errorf("write agent plist: %w", err)
	}

	// Reloading a changed agent requires unload first; ignore the error when
	// the agent was never loaded.
	_ = exec.CommandContext(ctx, "launchctl", "unload", plistPath).Run()

	return m.launchctl(ctx, "load", "-w", plistPath)
}

// Start launches the agent by label.
func (m *LaunchdManager) Start(ctx context.Context, name string) error {
	return m.launchctl(ctx, "start", name)
}

// Restart stops and starts the agent by label.
func (m *LaunchdManager) Restart(ctx context.Context, name string) error {
	_ = exec.CommandContext(ctx, "launchctl", "stop", name).Run()

	return m.launchctl(ctx, "start", name)
}

// Status reports whether launchctl knows the label and whether it runs.
func (m *LaunchdManager) Status(ctx context.Context, name string) (Status, error) {
	output, err := exec.CommandContext(ctx, "launchctl", "list", name).CombinedOutput()
	if err != nil {
		return StatusInactive, nil //nolint:nilerr // Unknown label means not loaded.
	}

	// `launchctl list <label>` prints a dictionary with a PID key when the
	// job is running.
	if strings.Contains(string(output), `"PID"`) {
		return StatusActive, nil
	}

	return StatusInactive, nil
}

// SerializeLaunchAgent renders the plist body for a service definition.
func SerializeLaunchAgent(def Definition) ([]byte, error) {
	tmpl, err := template.New("launch-agent").Parse(launchAgentTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse launch agent template: %w", err)
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, def); err != nil {
		return nil, fmt.Errorf("render launch agent: %w", err)
	}

	return buf.Bytes(), nil
}

// launchctl runs the launchctl binary and wraps failures with the arguments.
func (m *LaunchdManager) launchctl(ctx context.Context, args ...string) error {
	output, err := exec.CommandContext(ctx, "launchctl", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("launchctl %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(output)), err)
	}

	return nil
}

// resolveAgentsDir returns the LaunchAgents directory for the current user.
func (m *LaunchdManager) resolveAgentsDir() (string, error) {
	if m.agentsDir != "" {
		return m.agentsDir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, "Library", "LaunchAgents"), nil
}
