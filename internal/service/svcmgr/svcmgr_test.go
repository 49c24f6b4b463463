package svcmgr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// labJupyterDefinition is a representative definition used by serialization tests.
func labJupyterDefinition() Definition {
	return Definition{
		Name:        "labkit-jupyter",
		Description: "AI lab Jupyter server",
		ExecStart: []string{
			"/home/student/ai-lab/venv/bin/python",
			"-m", "jupyter", "lab",
			"--config", "/home/student/ai-lab/jupyter_server_config.py",
		},
		WorkingDir: "/home/student/ai-lab",
		LogFile:    "/home/student/ai-lab/logs/jupyter.log",
	}
}

// TestSerializeUnit checks section placement and ExecStart assembly.
func TestSerializeUnit(t *testing.T) {
	t.Parallel()

	data, err := SerializeUnit(labJupyterDefinition())
	require.NoError(t, err)

	text := string(data)
	require.Contains(t, text, "[Unit]")
	require.Contains(t, text, "Description=AI lab Jupyter server")
	require.Contains(t, text, "[Service]")
	require.Contains(t, text,
		"ExecStart=/home/student/ai-lab/venv/bin/python -m jupyter lab --config /home/student/ai-lab/jupyter_server_config.py")
	require.Contains(t, text, "WorkingDirectory=/home/student/ai-lab")
	require.Contains(t, text, "StandardOutput=append:/home/student/ai-lab/logs/jupyter.log")
	require.Contains(t, text, "WantedBy=default.target")
}

// TestSerializeLaunchAgent checks the plist program arguments and label.
func TestSerializeLaunchAgent(t *testing.T) {
	t.Parallel()

	data, err := SerializeLaunchAgent(labJupyterDefinition())
	require.NoError(t, err)

	text := string(data)
	require.Contains(t, text, "<string>labkit-jupyter</string>")
	require.Contains(t, text, "<string>/home/student/ai-lab/venv/bin/python</string>")
	require.Contains(t, text, "<string>--config</string>")
	require.Contains(t, text, "<key>RunAtLoad</key>")
	require.Contains(t, text, "<string>/home/student/ai-lab/logs/jupyter.log</string>")
}

// TestSerializeScheduledTask checks command splitting into Command/Arguments.
func TestSerializeScheduledTask(t *testing.T) {
	t.Parallel()

	data, err := SerializeScheduledTask(labJupyterDefinition())
	require.NoError(t, err)

	text := string(data)
	require.Contains(t, text, "<Command>/home/student/ai-lab/venv/bin/python</Command>")
	require.Contains(t, text,
		"<Arguments>-m jupyter lab --config /home/student/ai-lab/jupyter_server_config.py</Arguments>")
	require.Contains(t, text, "<WorkingDirectory>/home/student/ai-lab</WorkingDirectory>")

	_, err = SerializeScheduledTask(Definition{Name: "empty"})
	require.Error(t, err)
}

// TestCommandLine verifies whitespace-containing arguments get quoted.
func TestCommandLine(t *testing.T) {
	t.Parallel()

	line := commandLine([]string{"/usr/bin/python", "--config", "/path/with space/cfg.py"})
	require.Equal(t, `/usr/bin/python --config "/path/with space/cfg.py"`, line)
}

// TestStatusFromActiveState maps systemd states onto coarse statuses.
func TestStatusFromActiveState(t *testing.T) {
	t.Parallel()

	require.Equal(t, StatusActive, statusFromActiveState("active"))
	require.Equal(t, StatusActive, statusFromActiveState("activating"))
	require.Equal(t, StatusInactive, statusFromActiveState("inactive"))
	require.Equal(t, StatusFailed, statusFromActiveState("failed"))
	require.Equal(t, StatusUnknown, statusFromActiveState("weird"))
}

// TestUnitName appends the suffix only once.
func TestUnitName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "labkit-jupyter.service", unitName("labkit-jupyter"))
	require.Equal(t, "labkit-jupyter.service", unitName("labkit-jupyter.service"))
}
