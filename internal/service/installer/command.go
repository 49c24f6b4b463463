package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/advml-labs/labkit/internal/config"
	"github.com/advml-labs/labkit/internal/domain/provision"
	"github.com/advml-labs/labkit/internal/download"
	"github.com/advml-labs/labkit/internal/logger"
	staterepo "github.com/advml-labs/labkit/internal/repository/state"
	"github.com/advml-labs/labkit/internal/service/common"
	"github.com/advml-labs/labkit/internal/service/svcmgr"
)

// Options bundles the arguments of the provisioning command.
type Options struct {
	// ConfigPath is the path to the settings file.
	ConfigPath string
	// DryRun lists the steps that would run without touching the machine.
	DryRun bool
	// Quiet disables the per-step progress spinner.
	Quiet bool
	// SkipSteps lists step names excluded from this run.
	SkipSteps []string
}

// errUnknownStep rejects --skip values that match no step name.
var errUnknownStep = errors.New("unknown step name")

// runner carries the shared dependencies of the provisioning steps.
type runner struct {
	opts    *Options
	cfg     *config.Config
	state   *provision.State
	manager svcmgr.Manager
	fetcher *download.Client
}

// Run performs a full provisioning run: load settings, replay the step
// sequence with idempotency checks, and persist the recorded progress.
func Run(ctx context.Context, opts *Options) error {
	if err := validateSkipList(opts.SkipSteps); err != nil {
		return err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	logFile := attachInstallLog(ctx, cfg)
	if logFile != nil {
		defer func() {
			_ = logFile.Close()
		}()
	}

	// Set context with logger name for tracking. Derived after the install
	// log is attached so every run entry reaches the file the failure
	// message points at.
	ctx = logger.WithName(ctx, "labkit-installer")

	if err = persistGeneratedToken(ctx, opts.ConfigPath, cfg); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Starting provisioning run",
		"lab_home", cfg.LabHome,
		"dry_run", opts.DryRun)

	repo := staterepo.NewFileRepository(cfg.StatePath())

	st, err := loadState(ctx, repo)
	if err != nil {
		return err
	}

	r := &runner{
		opts:    opts,
		cfg:     cfg,
		state:   st,
		manager: platformManager(ctx),
		fetcher: download.NewClient(time.Duration(cfg.Timeout)),
	}

	runErr := runSteps(ctx, r.buildSteps(), opts)

	if !opts.DryRun {
		saveState(ctx, repo, st)
	}

	if runErr != nil {
		logger.ErrorKV(ctx, "Provisioning failed",
			"log_file", cfg.InstallLogPath(),
			"error", runErr)

		return runErr
	}

	logger.InfoKV(ctx, "Lab environment ready", "url", cfg.JupyterURL())

	return nil
}

// validateSkipList rejects skip entries that match no known step.
func validateSkipList(skip []string) error {
	known := make(map[string]struct{})
	for _, name := range StepNames() {
		known[name] = struct{}{}
	}

	for _, name := range skip {
		if _, found := known[name]; !found {
			return fmt.Errorf("%s: %w", name, errUnknownStep)
		}
	}

	return nil
}

// persistGeneratedToken stores a freshly generated Jupyter token back into the
// settings file so every later run and emitted artifact uses the same secret.
func persistGeneratedToken(ctx context.Context, path string, cfg *config.Config) error {
	generated, err := cfg.EnsureToken()
	if err != nil {
		return err
	}

	if !generated {
		return nil
	}

	logger.Info(ctx, "Generated a new Jupyter access token")

	if err = config.Save(path, cfg); err != nil {
		return fmt.Errorf("persist generated token: %w", err)
	}

	return nil
}

// attachInstallLog tees the logger into the install log file inside the lab
// home. Failure to open the file is not fatal, the run continues with console
// output only.
func attachInstallLog(ctx context.Context, cfg *config.Config) *os.File {
	if err := os.MkdirAll(cfg.LogsDir(), 0o755); err != nil {
		logger.WarnKV(ctx, "Cannot create logs directory, console output only", "error", err)
		return nil
	}

	logFile, err := os.OpenFile(cfg.InstallLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.WarnKV(ctx, "Cannot open install log, console output only", "error", err)
		return nil
	}

	logger.SetLogger(logger.NewWithSink(logger.Level(), logFile))

	return logFile
}

// loadState reads the recorded progress of earlier runs, starting fresh on
// first install.
func loadState(ctx context.Context, repo staterepo.Repository) (*provision.State, error) {
	st, err := repo.Load(ctx)
	if err == nil {
		return st, nil
	}

	if errors.Is(err, staterepo.ErrNotFound) {
		return provision.NewState(), nil
	}

	return nil, fmt.Errorf("load provisioning state: %w", err)
}

// saveState stamps and persists the progress. A failed save is advisory, the
// next run simply redoes the idempotency checks against the filesystem.
func saveState(ctx context.Context, repo staterepo.Repository, st *provision.State) {
	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Cannot detect current user", "error", err)
	}

	st.Touch(actor)

	if err = repo.Save(ctx, st); err != nil {
		logger.WarnKV(ctx, "Cannot persist provisioning state", "error", err)
	}
}

// platformManager resolves the OS service manager, degrading to nil on
// unsupported platforms so only the autostart step is affected.
func platformManager(ctx context.Context) svcmgr.Manager {
	manager, err := svcmgr.ForPlatform()
	if err != nil {
		logger.WarnKV(ctx, "No service manager on this platform, autostart unavailable", "error", err)
		return nil
	}

	return manager
}

// runCommand executes an external command, mirroring its combined output into
// the debug log.
func runCommand(ctx context.Context, name string, args ...string) error {
	logger.DebugKV(ctx, "Executing command", "command", name, "args", strings.Join(args, " "))

	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if len(output) > 0 {
		logger.Debug(ctx, string(output))
	}

	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, outputTail(output))
	}

	return nil
}

// outputTailLimit bounds how much command output is attached to errors.
const outputTailLimit = 400

// outputTail returns the trimmed trailing portion of command output.
func outputTail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if len(text) > outputTailLimit {
		text = "..." + text[len(text)-outputTailLimit:]
	}

	return text
}
