package relaunch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/oshokin/desktop-updater/internal/config"
	"github.com/oshokin/desktop-updater/internal/domain/update"
	"github.com/oshokin/desktop-updater/internal/install"
	"github.com/oshokin/desktop-updater/internal/logger"
	"github.com/oshokin/desktop-updater/internal/process"
)

// State is a step of the in-process part of the relaunch protocol.
type State int

const (
	// StateIdle is the state before a trigger.
	StateIdle State = iota
	// StatePathsResolved means the layout was accepted and the install root is writable.
	StatePathsResolved
	// StateScriptWritten means the script or helper and its command are on disk.
	StateScriptWritten
	// StateScriptLaunched means the detached process was spawned.
	StateScriptLaunched
	// StateHostTerminated means the exit function was called.
	StateHostTerminated
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePathsResolved:
		return "PathsResolved"
	case StateScriptWritten:
		return "ScriptWritten"
	case StateScriptLaunched:
		return "ScriptLaunched"
	case StateHostTerminated:
		return "HostTerminated"
	default:
		return "Unknown"
	}
}

const (
	// applyCommand is the hidden CLI subcommand the helper copy runs.
	applyCommand = "apply"
	// terminalApp hosts the script when visible_terminal is enabled.
	terminalApp = "Terminal"
	// bashPath runs the script silently.
	bashPath = "/bin/bash"
	// openPath launches applications through LaunchServices.
	openPath = "/usr/bin/open"
)

var (
	// errAlreadyTriggered is returned for a second trigger on the same orchestrator.
	errAlreadyTriggered = errors.New("update already triggered")
	// errLayoutRequired is returned when no layout is provided.
	errLayoutRequired = errors.New("layout must be provided")
)

// Orchestrator drives the in-process part of an update: it writes the
// out-of-process artifact, launches it detached and terminates the host.
type Orchestrator struct {
	cfg          *config.Config
	layout       *update.Layout
	launcher     process.Launcher
	exit         func(code int)
	helperSource string
	now          func() time.Time
	newID        func() string

	mu    sync.Mutex
	state State
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLauncher replaces the detached process launcher.
func WithLauncher(launcher process.Launcher) Option {
	return func(o *Orchestrator) {
		o.launcher = launcher
	}
}

// WithExit replaces os.Exit. The function is called with 0 after a
// successful launch; Trigger returns nil if it returns.
func WithExit(exit func(code int)) Option {
	return func(o *Orchestrator) {
		o.exit = exit
	}
}

// WithHelperSource sets the binary copied as helper. Defaults to the layout's executable.
func WithHelperSource(path string) Option {
	return func(o *Orchestrator) {
		o.helperSource = path
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithAttemptIDs replaces the attempt identifier generator.
func WithAttemptIDs(newID func() string) Option {
	return func(o *Orchestrator) {
		o.newID = newID
	}
}

// New creates an orchestrator for a resolved layout.
func New(cfg *config.Config, layout *update.Layout, options ...Option) (*Orchestrator, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	if layout == nil {
		return nil, errLayoutRequired
	}

	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}

	o := &Orchestrator{
		cfg:          cfg,
		layout:       layout,
		launcher:     process.DetachedLauncher{},
		exit:         os.Exit,
		helperSource: layout.ExecutablePath,
		now:          time.Now,
		newID:        uuid.NewString,
	}

	for _, option := range options {
		option(o)
	}

	return o, nil
}

// State returns the current protocol state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.state
}

// Layout returns the layout the orchestrator operates on.
func (o *Orchestrator) Layout() *update.Layout {
	return o.layout
}

// Trigger performs TriggerUpdateAndRelaunch. On success the host exits with
// code 0 and, with the default exit function, Trigger never returns. Any
// failure before the launch abandons the update and leaves the host running;
// the returned error matches update.ErrPermissionDenied,
// update.ErrScriptWriteFailed or update.ErrLaunchFailed.
func (o *Orchestrator) Trigger(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateIdle {
		return fmt.Errorf("%w: state %s", errAlreadyTriggered, o.state)
	}

	cmd := o.command()
	ctx = logger.WithKV(logger.WithName(ctx, "relaunch"), "attempt_id", cmd.AttemptID)

	if err := o.run(ctx, cmd); err != nil {
		logger.ErrorKV(ctx, "Update abandoned, host keeps running",
			"state", o.state.String(), "kind", update.KindOf(err), "error", err)

		o.state = StateIdle

		return err
	}

	return nil
}

func (o *Orchestrator) run(ctx context.Context, cmd *update.Command) error {
	logger.InfoKV(ctx, "Update triggered",
		"install_root", o.layout.InstallRoot,
		"staging", o.layout.StagingPath,
		"process", o.layout.ProcessName,
		"from_version", cmd.FromVersion)

	if err := probeWritable(o.layout); err != nil {
		return err
	}

	if _, err := os.Stat(o.layout.StagingPath); err != nil {
		logger.WarnKV(ctx, "Staging tree is absent, the helper will only relaunch", "staging", o.layout.StagingPath)
	}

	o.transition(ctx, StatePathsResolved)

	script, err := o.writeArtifacts(ctx, cmd)
	if err != nil {
		o.cleanup(ctx)
		return err
	}

	o.transition(ctx, StateScriptWritten)

	handle, err := o.launcher.Launch(ctx, script.Argv)
	if err != nil {
		o.cleanup(ctx)
		return fmt.Errorf("launch %q: %w: %w", script.Path, update.ErrLaunchFailed, err)
	}

	o.transition(ctx, StateScriptLaunched)
	logger.InfoKV(ctx, "Helper launched, terminating host", "pid", handle.PID, "detached", handle.Detached)
	logger.Sync(ctx)

	o.transition(ctx, StateHostTerminated)
	o.exit(0)

	return nil
}

// command builds the handoff for this attempt.
func (o *Orchestrator) command() *update.Command {
	return &update.Command{
		AttemptID:    o.newID(),
		CreatedAt:    o.now().UTC(),
		HostPID:      os.Getpid(),
		Layout:       *o.layout,
		FromVersion:  install.CurrentVersion(o.layout),
		PollInterval: o.cfg.PollInterval,
		Relaunch:     install.RelaunchCommand(o.layout),
		LogFile:      o.cfg.LogFile,
		ResultFile:   o.cfg.ResultPath(),
		HelperPath:   o.cfg.HelperPath(),
	}
}

// writeArtifacts installs the helper and its command, or renders the shell script.
func (o *Orchestrator) writeArtifacts(ctx context.Context, cmd *update.Command) (*Script, error) {
	if err := os.MkdirAll(o.cfg.TempDir, 0o700); err != nil {
		return nil, fmt.Errorf("create temp dir: %w: %w", update.ErrScriptWriteFailed, err)
	}

	if o.cfg.ScriptMode == config.ScriptShell {
		return o.writeShell(ctx, cmd)
	}

	return o.writeHelper(ctx, cmd)
}

func (o *Orchestrator) writeShell(ctx context.Context, cmd *update.Command) (*Script, error) {
	text, err := RenderShell(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", update.ErrScriptWriteFailed, err)
	}

	path := o.cfg.ScriptPath()
	if err = writeFileAtomic(path, []byte(text), scriptMode); err != nil {
		return nil, fmt.Errorf("write script %q: %w: %w", path, update.ErrScriptWriteFailed, err)
	}

	argv := []string{bashPath, path}

	if o.cfg.VisibleTerminal {
		if runtime.GOOS == "darwin" {
			argv = []string{openPath, "-a", terminalApp, path}
		} else {
			logger.Warn(ctx, "Visible terminal is only supported on macOS, running the script silently")
		}
	}

	logger.InfoKV(ctx, "Relaunch script written", "path", path)

	return &Script{Path: path, Text: text, Mode: scriptMode, Argv: argv}, nil
}

func (o *Orchestrator) writeHelper(ctx context.Context, cmd *update.Command) (*Script, error) {
	if err := installHelper(o.helperSource, cmd.HelperPath); err != nil {
		return nil, fmt.Errorf("install helper %q: %w: %w", cmd.HelperPath, update.ErrScriptWriteFailed, err)
	}

	data, err := update.MarshalCommand(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", update.ErrScriptWriteFailed, err)
	}

	commandPath := o.cfg.CommandPath()
	if err = writeFileAtomic(commandPath, data, config.DefaultFilePermissions); err != nil {
		return nil, fmt.Errorf("write command %q: %w: %w", commandPath, update.ErrScriptWriteFailed, err)
	}

	logger.InfoKV(ctx, "Relaunch helper installed", "helper", cmd.HelperPath, "command", commandPath)

	return &Script{
		Path: cmd.HelperPath,
		Mode: helperMode,
		Argv: []string{
			cmd.HelperPath, applyCommand,
			"--command", commandPath,
			"--log-level", logger.Level().String(),
		},
	}, nil
}

// cleanup removes artifacts of an abandoned attempt.
func (o *Orchestrator) cleanup(ctx context.Context) {
	var merr *multierror.Error

	for _, path := range []string{o.cfg.ScriptPath(), o.cfg.HelperPath(), o.cfg.CommandPath()} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			merr = multierror.Append(merr, fmt.Errorf("remove %q: %w", path, err))
		}
	}

	if err := merr.ErrorOrNil(); err != nil {
		logger.WarnKV(ctx, "Failed to clean up abandoned attempt", "error", err)
	}
}

func (o *Orchestrator) transition(ctx context.Context, next State) {
	logger.DebugKV(ctx, "Relaunch state changed", "from", o.state.String(), "to", next.String())
	o.state = next
}
