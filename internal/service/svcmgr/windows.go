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

// TaskSchedulerManager manages logon tasks through the Windows Task Scheduler.
type TaskSchedulerManager struct {
	// taskDir is where exported task XML files are kept before registration;
	// empty means the system temp directory.
	taskDir string
}

// scheduledTaskTemplate is the Task Scheduler job body generated for a
// service definition.
const scheduledTaskTemplate = `<?xml version="1.0" encoding="UTF-16"?>
<Task version="1.2" xmlns="http://schemas.microsoft.com/windows/2004/02/mit/task">
  <RegistrationInfo>
    <Description>{{ .Description }}</Description>
  </RegistrationInfo>
  <Triggers>
    <LogonTrigger>
      <Enabled>true</Enabled>
    </LogonTrigger>
  </Triggers>
  <Settings>
    <DisallowStartIfOnBatteries>false</DisallowStartIfOnBatteries>
    <StopIfGoingOnBatteries>false</StopIfGoingOnBatteries>
    <StartWhenAvailable>true</StartWhenAvailable>
  </Settings>
  <Actions Context="Author">
    <Exec>
      <Command>{{ index .ExecStart 0 }}</Command>
      <Arguments>{{ .ArgumentsLine }}</Arguments>
{{- if .WorkingDir }}
      <WorkingDirectory>{{ .WorkingDir }}</WorkingDirectory>
{{- end }}
    </Exec>
  </Actions>
</Task>
`

// NewTaskSchedulerManager creates a Task Scheduler manager. An empty taskDir
// selects the system temp directory for exported XML files.
func NewTaskSchedulerManager(taskDir string) *TaskSchedulerManager {
	return &TaskSchedulerManager{taskDir: taskDir}
}

// Install writes the task XML and registers it, replacing a previous task.
func (m *TaskSchedulerManager) Install(ctx context.Context, def Definition) error {
	data, err := SerializeScheduledTask(def)
	if err != nil {
		return err
	}

	dir := m.taskDir
	if dir == "" {
		dir = os.TempDir()
	}

	xmlPath := filepath.Join(dir, def.Name+".xml")
	if err = os.WriteFile(xmlPath, data, 0o644); err != nil {
		return fmt.Errorf("write task xml: %w", err)
	}

	return m.schtasks(ctx, "/Create", "/TN", def.Name, "/XML", xmlPath, "/F")
}

// Start runs the named task immediately.
func (m *TaskSchedulerManager) Start(ctx context.Context, name string) error {
	return m.schtasks(ctx, "/Run", "/TN", name)
}

// Restart ends the task and runs it again.
func (m *TaskSchedulerManager) Restart(ctx context.Context, name string) error {
	_ = exec.CommandContext(ctx, "schtasks", "/End", "/TN", name).Run()

	return m.schtasks(ctx, "/Run", "/TN", name)
}

// Status queries the task and maps its Status column.
func (m *TaskSchedulerManager) Status(ctx context.Context, name string) (Status, error) {
	output, err := exec.CommandContext(ctx, "schtasks", "/Query", "/TN", name, "/FO", "LIST").CombinedOutput()
	if err != nil {
		return StatusUnknown, nil //nolint:nilerr // Missing task is a state, not a failure.
	}

	text := string(output)

	switch {
	case strings.Contains(text, "Running"):
		return StatusActive, nil
	case strings.Contains(text, "Ready"):
		return StatusInactive, nil
	default:
		return StatusUnknown, nil
	}
}

// SerializeScheduledTask renders the task XML body for a service definition.
func SerializeScheduledTask(def Definition) ([]byte, error) {
	if len(def.ExecStart) == 0 {
		return nil, fmt.Errorf("task %s: %w", def.Name, errEmptyExecStart)
	}

	data := struct {
		Definition
		ArgumentsLine string
	}{
		Definition:    def,
		ArgumentsLine: commandLine(def.ExecStart[1:]),
	}

	tmpl, err := template.New("scheduled-task").Parse(scheduledTaskTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse scheduled task template: %w", err)
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render scheduled task: %w", err)
	}

	return buf.Bytes(), nil
}

// schtasks runs the schtasks binary and wraps failures with the arguments.
func (m *TaskSchedulerManager) schtasks(ctx context.Context, args ...string) error {
	output, err := exec.CommandContext(ctx, "schtasks", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("schtasks %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(output)), err)
	}

	return nil
}
