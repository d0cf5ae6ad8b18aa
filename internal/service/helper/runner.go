package helper

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/oshokin/desktop-updater/internal/domain/update"
	"github.com/oshokin/desktop-updater/internal/install"
	"github.com/oshokin/desktop-updater/internal/logger"
	"github.com/oshokin/desktop-updater/internal/process"
	"github.com/oshokin/desktop-updater/internal/repository/result"
	"github.com/oshokin/desktop-updater/internal/service/common"
	"github.com/oshokin/desktop-updater/internal/treesync"
	"github.com/oshokin/desktop-updater/internal/version"
)

// Waiter blocks until no process carries name.
type Waiter interface {
	WaitForExit(ctx context.Context, name string) error
}

// Runner executes an update.Command after the host is gone.
type Runner struct {
	waiter   Waiter
	launcher process.Launcher
	results  result.Repository
	now      func() time.Time
	actor    func() (*update.Actor, error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithWaiter replaces the process table waiter.
func WithWaiter(waiter Waiter) Option {
	return func(r *Runner) {
		r.waiter = waiter
	}
}

// WithLauncher replaces the relaunch launcher.
func WithLauncher(launcher process.Launcher) Option {
	return func(r *Runner) {
		r.launcher = launcher
	}
}

// WithResults replaces the result repository derived from the command.
func WithResults(results result.Repository) Option {
	return func(r *Runner) {
		r.results = results
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithActor replaces actor detection.
func WithActor(actor func() (*update.Actor, error)) Option {
	return func(r *Runner) {
		r.actor = actor
	}
}

// NewRunner creates a Runner. Unset collaborators are derived from the command
// when Execute is called.
func NewRunner(options ...Option) *Runner {
	r := &Runner{
		launcher: process.DetachedLauncher{},
		now:      time.Now,
		actor:    common.DetectActor,
	}

	for _, option := range options {
		option(r)
	}

	return r
}

// attempt accumulates the outcome while the stages run.
type attempt struct {
	ctx    context.Context //nolint:containedctx // Scoped to a single Execute call.
	result *update.Result
	failed bool
}

// enter records the stage about to run.
func (a *attempt) enter(stage update.Stage) {
	if !a.failed {
		a.result.Stage = stage
	}

	logger.InfoKV(a.ctx, "Stage started", "stage", string(stage))
}

// fail records the first failure; later failures are only logged.
func (a *attempt) fail(stage update.Stage, err error) {
	logger.ErrorKV(a.ctx, "Stage failed", "stage", string(stage), "kind", update.KindOf(err), "error", err)

	if a.failed {
		return
	}

	a.failed = true
	a.result.Stage = stage
	a.result.ErrorKind = update.KindOf(err)
	a.result.Error = err.Error()
}

// Execute runs the stages for cmd and returns the recorded result.
// commandPath is deleted with the helper during self-deletion.
func (r *Runner) Execute(ctx context.Context, cmd *update.Command, commandPath string) *update.Result {
	a := &attempt{
		ctx: ctx,
		result: &update.Result{
			AttemptID:   cmd.AttemptID,
			FromVersion: cmd.FromVersion,
			StartedAt:   r.now().UTC(),
		},
	}

	if actor, err := r.actor(); err == nil {
		a.result.Actor = actor
	} else {
		logger.WarnKV(ctx, "Unable to detect actor", "error", err)
	}

	logger.InfoKV(ctx, "Update helper started",
		"host_pid", cmd.HostPID,
		"process", cmd.Layout.ProcessName,
		"staging", cmd.Layout.StagingPath,
		"install_root", cmd.Layout.InstallRoot)

	a.enter(update.StageWaiting)

	if err := r.waiterFor(cmd).WaitForExit(ctx, cmd.Layout.ProcessName); err != nil {
		// Without confirmation that the host is gone, files must not be touched.
		a.fail(update.StageWaiting, err)
		r.finish(a, cmd, commandPath)

		return a.result
	}

	r.copyStaging(a, cmd)
	r.logVersionChange(a, cmd)
	r.relaunch(a, cmd)
	r.finish(a, cmd, commandPath)

	return a.result
}

// copyStaging synchronizes and then removes the staging tree. Staging is kept
// when the copy fails so the payload survives for a retry.
func (r *Runner) copyStaging(a *attempt, cmd *update.Command) {
	staging := cmd.Layout.StagingPath

	info, err := os.Stat(staging)
	if err != nil || !info.IsDir() {
		logger.InfoKV(a.ctx, "No staged update found, nothing to copy", "staging", staging)
		return
	}

	a.enter(update.StageCopying)

	report, err := treesync.Sync(a.ctx, staging, cmd.Layout.InstallRoot)
	if report != nil {
		a.result.FilesReplaced = report.FilesWritten()
	}

	if err != nil {
		a.fail(update.StageCopying, err)
		logger.WarnKV(a.ctx, "Keeping staging tree after failed copy", "staging", staging)

		return
	}

	logger.InfoKV(a.ctx, "Staging synchronized",
		"directories_created", report.DirectoriesCreated,
		"files_copied", report.FilesCopied,
		"files_replaced", report.FilesReplaced,
		"symlinks", report.SymlinksCreated)

	a.enter(update.StageCleaning)

	if err = os.RemoveAll(staging); err != nil {
		a.fail(update.StageCleaning, fmt.Errorf("remove staging %q: %w", staging, err))
		return
	}

	logger.InfoKV(a.ctx, "Staging removed", "staging", staging)
}

// logVersionChange records the version now installed and how it relates to the old one.
func (r *Runner) logVersionChange(a *attempt, cmd *update.Command) {
	layout := cmd.Layout
	a.result.ToVersion = install.CurrentVersion(&layout)

	if a.result.FromVersion == "" {
		return
	}

	cmp, err := version.Compare(a.result.FromVersion, a.result.ToVersion)
	if err != nil {
		logger.DebugKV(a.ctx, "Versions are not comparable", "from", a.result.FromVersion, "to", a.result.ToVersion, "error", err)
		return
	}

	direction := "unchanged"

	switch {
	case cmp < 0:
		direction = "upgrade"
	case cmp > 0:
		direction = "downgrade"
	}

	logger.InfoKV(a.ctx, "Installed version", "from", a.result.FromVersion, "to", a.result.ToVersion, "direction", direction)
}

// relaunch starts the application regardless of earlier failures so the user
// is never left without a running app.
func (r *Runner) relaunch(a *attempt, cmd *update.Command) {
	a.enter(update.StageRelaunching)

	handle, err := r.launcher.Launch(a.ctx, cmd.Relaunch)
	if err != nil {
		a.fail(update.StageRelaunching, fmt.Errorf("%w: %w", update.ErrLaunchFailed, err))
		return
	}

	logger.InfoKV(a.ctx, "Application relaunched", "pid", handle.PID)
}

// finish deletes the helper's own artifacts and records the result.
func (r *Runner) finish(a *attempt, cmd *update.Command, commandPath string) {
	a.enter(update.StageSelfDeleting)

	if err := selfDelete(cmd, commandPath); err != nil {
		logger.WarnKV(a.ctx, "Self-deletion incomplete", "error", err)
	}

	if !a.failed {
		a.result.Success = true
		a.result.Stage = update.StageDone
	}

	a.result.FinishedAt = r.now().UTC()

	if err := r.resultsFor(cmd).Save(a.ctx, a.result); err != nil {
		logger.WarnKV(a.ctx, "Unable to record result", "error", err)
	}

	logger.InfoKV(a.ctx, "Update helper finished",
		"success", a.result.Success,
		"stage", string(a.result.Stage),
		"error_kind", a.result.ErrorKind)
}

// selfDelete removes the command file and the helper binary. The installed
// executable is never removed even if a command names it as the helper.
func selfDelete(cmd *update.Command, commandPath string) error {
	var merr *multierror.Error

	for _, path := range []string{commandPath, cmd.HelperPath} {
		if path == "" || filepath.Clean(path) == filepath.Clean(cmd.Layout.ExecutablePath) {
			continue
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			merr = multierror.Append(merr, fmt.Errorf("remove %q: %w", path, err))
		}
	}

	return merr.ErrorOrNil()
}

func (r *Runner) waiterFor(cmd *update.Command) Waiter {
	if r.waiter != nil {
		return r.waiter
	}

	return process.NewWaiter(cmd.PollInterval)
}

func (r *Runner) resultsFor(cmd *update.Command) result.Repository {
	if r.results != nil {
		return r.results
	}

	return result.NewFileRepository(cmd.ResultFile)
}
