package bootstrap

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/advml-labs/labkit/internal/logger"
)

// markerLifetime is the period after which a stale bootstrap marker is ignored.
const markerLifetime = 30 * time.Second

// versionCommandTimeout bounds the local version detection command.
const versionCommandTimeout = 10 * time.Second

// errInvalidVersionOutput is returned when the installer version output does
// not match the expected format.
var errInvalidVersionOutput = errors.New("invalid version output format")

// IsBootstrapRunningNow checks presence of a marker file and attempts
// recovery when it looks stale.
func IsBootstrapRunningNow(ctx context.Context) bool {
	logger.Info(ctx, "Checking for the presence of a bootstrap marker")

	fileInfo, err := os.Stat(MarkerFilename)
	if err == nil {
		if time.Since(fileInfo.ModTime()) <= markerLifetime {
			return true
		}

		logger.Info(ctx, "The bootstrap marker is too old, attempting cleanup")

		if err = terminateProcessByName("labkit-bootstrap" + executableExtension()); err != nil {
			return true
		}

		if err = os.Remove(MarkerFilename); err != nil {
			return true
		}

		return false
	}

	if errors.Is(err, os.ErrNotExist) {
		logger.Info(ctx, "Bootstrap marker not found, continuing")
		return false
	}

	logger.Infof(ctx, "Unable to read bootstrap marker: %v", err)

	return false
}

// terminateProcessByName tries to kill processes with the provided executable name.
func terminateProcessByName(processName string) error {
	processList, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != processName {
			continue
		}

		var runningProcess *os.Process

		runningProcess, err = os.FindProcess(process.Pid())
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return err
		}
	}

	return nil
}

// parseVersionFromOutput extracts the semantic version from installer version
// output of the form "version: 0.3.0, commit: abc123, built at: ...".
func parseVersionFromOutput(output string) (string, error) {
	output = strings.TrimSpace(output)
	if !strings.HasPrefix(output, "version: ") {
		return "", errInvalidVersionOutput
	}

	firstField, _, _ := strings.Cut(output, ",")

	parsed := strings.TrimSpace(strings.TrimPrefix(firstField, "version: "))
	if parsed == "" {
		return "", errInvalidVersionOutput
	}

	return parsed, nil
}
