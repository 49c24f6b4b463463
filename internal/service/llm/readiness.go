package llm

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/advml-labs/labkit/internal/logger"
)

// WaitOptions bound the readiness polling loop.
type WaitOptions struct {
	// PollInterval is the pause between status probes.
	PollInterval time.Duration
	// MaxWait is the total budget of one polling round.
	MaxWait time.Duration
}

const (
	// DefaultPollInterval is the pause between runtime status probes.
	DefaultPollInterval = 2 * time.Second

	// DefaultMaxWait is the budget of one polling round.
	DefaultMaxWait = 60 * time.Second
)

// ErrNotReady is returned when the runtime stayed unready through the polling
// budget and the single restart attempt. Callers treat it as advisory.
var ErrNotReady = errors.New("runtime did not become ready in time")

// normalize fills zero options with defaults.
func (o WaitOptions) normalize() WaitOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}

	if o.MaxWait <= 0 {
		o.MaxWait = DefaultMaxWait
	}

	return o
}

// WaitReady polls the runtime at a fixed interval until it answers or the
// budget elapses. The loop always terminates within MaxWait and honors
// context cancellation.
func WaitReady(ctx context.Context, client *Client, opts WaitOptions) error {
	opts = opts.normalize()

	deadline := time.Now().Add(opts.MaxWait)
	ticker := time.NewTicker(opts.PollInterval)

	defer ticker.Stop()

	for {
		err := client.Ready(ctx)
		if err == nil {
			return nil
		}

		logger.DebugKV(ctx, "Runtime not ready yet", "error", err)

		if time.Now().After(deadline) {
			return ErrNotReady
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// EnsureReady runs one polling round, attempts a single explicit restart when
// the runtime stayed silent, and polls once more. A still-unready runtime
// surfaces ErrNotReady; the caller degrades it to a warning instead of
// aborting the provisioning run.
func EnsureReady(ctx context.Context, client *Client, restart func(context.Context) error, opts WaitOptions) error {
	if err := WaitReady(ctx, client, opts); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotReady) {
		return err
	}

	logger.Warn(ctx, "Runtime not ready after polling, attempting one restart")

	if err := restart(ctx); err != nil {
		logger.WarnKV(ctx, "Runtime restart failed", "error", err)
		return ErrNotReady
	}

	return WaitReady(ctx, client, opts)
}

// PullModel downloads a model through the runtime CLI. The runtime streams
// its own progress output, which is discarded; only the exit status matters.
func PullModel(ctx context.Context, model string) error {
	return exec.CommandContext(ctx, "ollama", "pull", model).Run()
}

// StartServer launches the runtime server detached from the installer
// process. Used on platforms where the runtime is not registered as a service.
func StartServer() error {
	cmd := exec.Command("ollama", "serve")
	if err := cmd.Start(); err != nil {
		return err
	}

	return cmd.Process.Release()
}

// BinaryInstalled reports whether the runtime CLI is on PATH.
func BinaryInstalled() bool {
	_, err := exec.LookPath("ollama")

	return err == nil
}
