package installer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/briandowns/spinner"

	"github.com/advml-labs/labkit/internal/logger"
)

// Step is one provisioning action of the fixed sequence.
type Step struct {
	// Name identifies the step in logs, state and --skip flags.
	Name string
	// Required marks steps whose failure aborts the run. Optional steps
	// degrade to warnings.
	Required bool
	// Check reports whether the step outcome is already present on disk.
	// Satisfied steps are skipped, which keeps re-runs free of redundant
	// work. A nil Check means the step always runs.
	Check func(ctx context.Context) (bool, error)
	// Run performs the action.
	Run func(ctx context.Context) error
}

// ErrStepFailed wraps the failure of a required step.
var ErrStepFailed = errors.New("required step failed")

// spinnerInterval is the frame rate of the progress spinner.
const spinnerInterval = 100 * time.Millisecond

// runSteps executes the sequence in order, applying skip lists, idempotency
// checks and the fatal/advisory error tiers.
//
//nolint:cyclop // The tier and skip handling is one linear decision chain.
func runSteps(ctx context.Context, steps []Step, opts *Options) error {
	skipped := make(map[string]struct{}, len(opts.SkipSteps))
	for _, name := range opts.SkipSteps {
		skipped[name] = struct{}{}
	}

	for _, step := range steps {
		if _, found := skipped[step.Name]; found {
			logger.InfoKV(ctx, "Step skipped on request", "step", step.Name)
			continue
		}

		if opts.DryRun {
			logger.InfoKV(ctx, "Would run step", "step", step.Name, "required", step.Required)
			continue
		}

		if step.Check != nil {
			satisfied, err := step.Check(ctx)
			if err != nil {
				logger.WarnKV(ctx, "Idempotency check failed, running step anyway",
					"step", step.Name, "error", err)
			}

			if satisfied {
				logger.InfoKV(ctx, "Already provisioned, skipping", "step", step.Name)
				continue
			}
		}

		if err := executeStep(ctx, step, opts); err != nil {
			if step.Required {
				return fmt.Errorf("step %s: %w: %w", step.Name, ErrStepFailed, err)
			}

			logger.WarnKV(ctx, "Optional step failed, continuing", "step", step.Name, "error", err)
		}
	}

	return nil
}

// executeStep runs one step with a progress spinner unless quiet mode is on.
func executeStep(ctx context.Context, step Step, opts *Options) error {
	logger.InfoKV(ctx, "Running step", "step", step.Name)

	if !opts.Quiet {
		progress := spinner.New(spinner.CharSets[14], spinnerInterval)
		progress.Suffix = " " + step.Name
		progress.Start()

		defer progress.Stop()
	}

	return step.Run(ctx)
}

// StepNames returns the names of the full sequence in order, for flag
// validation and documentation.
func StepNames() []string {
	return []string{
		StepDirectories,
		StepSystemPackages,
		StepVenv,
		StepPythonPackages,
		StepDatasets,
		StepNotebooks,
		StepJupyterConfig,
		StepShortcut,
		StepBackupLauncher,
		StepAutostart,
		StepRuntime,
	}
}
