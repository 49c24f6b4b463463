package installer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// countingStep returns a step whose Run increments the counter.
func countingStep(name string, required bool, satisfied bool, counter *int) Step {
	return Step{
		Name:     name,
		Required: required,
		Check: func(_ context.Context) (bool, error) {
			return satisfied, nil
		},
		Run: func(_ context.Context) error {
			*counter++
			return nil
		},
	}
}

// TestRunSteps_SkipsSatisfied verifies that a fully provisioned sequence
// executes zero Run funcs.
func TestRunSteps_SkipsSatisfied(t *testing.T) {
	t.Parallel()

	var runs int

	steps := []Step{
		countingStep("a", true, true, &runs),
		countingStep("b", false, true, &runs),
	}

	require.NoError(t, runSteps(context.Background(), steps, &Options{Quiet: true}))
	require.Zero(t, runs)
}

// TestRunSteps_RequiredFailureAborts verifies a failed required step stops
// the sequence before later steps run.
func TestRunSteps_RequiredFailureAborts(t *testing.T) {
	t.Parallel()

	var laterRuns int

	steps := []Step{
		{
			Name:     "broken",
			Required: true,
			Run: func(_ context.Context) error {
				return errBoom
			},
		},
		countingStep("later", true, false, &laterRuns),
	}

	err := runSteps(context.Background(), steps, &Options{Quiet: true})
	require.ErrorIs(t, err, ErrStepFailed)
	require.ErrorIs(t, err, errBoom)
	require.Zero(t, laterRuns)
}

// TestRunSteps_OptionalFailureContinues verifies an optional failure degrades
// to a warning and the sequence proceeds.
func TestRunSteps_OptionalFailureContinues(t *testing.T) {
	t.Parallel()

	var laterRuns int

	steps := []Step{
		{
			Name: "flaky",
			Run: func(_ context.Context) error {
				return errBoom
			},
		},
		countingStep("later", true, false, &laterRuns),
	}

	require.NoError(t, runSteps(context.Background(), steps, &Options{Quiet: true}))
	require.Equal(t, 1, laterRuns)
}

// TestRunSteps_SkipList verifies requested steps are excluded even when their
// checks report work to do.
func TestRunSteps_SkipList(t *testing.T) {
	t.Parallel()

	var runs int

	steps := []Step{
		countingStep("wanted", true, false, &runs),
		countingStep("unwanted", true, false, &runs),
	}

	opts := &Options{Quiet: true, SkipSteps: []string{"unwanted"}}

	require.NoError(t, runSteps(context.Background(), steps, opts))
	require.Equal(t, 1, runs)
}

// TestRunSteps_DryRun verifies dry runs touch nothing.
func TestRunSteps_DryRun(t *testing.T) {
	t.Parallel()

	var runs int

	steps := []Step{
		countingStep("a", true, false, &runs),
		countingStep("b", false, false, &runs),
	}

	require.NoError(t, runSteps(context.Background(), steps, &Options{Quiet: true, DryRun: true}))
	require.Zero(t, runs)
}

// TestValidateSkipList accepts known names and rejects typos.
func TestValidateSkipList(t *testing.T) {
	t.Parallel()

	require.NoError(t, validateSkipList(nil))
	require.NoError(t, validateSkipList([]string{StepDatasets, StepRuntime}))
	require.ErrorIs(t, validateSkipList([]string{"dataset"}), errUnknownStep)
}
