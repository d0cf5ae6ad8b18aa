package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/oshokin/desktop-updater/internal/logger"
)

var errEmptyCommand = errors.New("command must be provided")

// Handle identifies a spawned process.
type Handle struct {
	// PID is the operating system process identifier.
	PID int
	// Detached tells whether the process runs in its own session.
	Detached bool
}

// Launcher starts processes that must outlive the caller.
type Launcher interface {
	Launch(ctx context.Context, argv []string) (*Handle, error)
}

// DetachedLauncher starts processes in a new session with stdio bound to the
// null device and releases them immediately.
type DetachedLauncher struct{}

// Launch starts argv detached. The context is not bound to the child's lifetime.
func (DetachedLauncher) Launch(ctx context.Context, argv []string) (*Handle, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errEmptyCommand
	}

	//nolint:gosec,noctx // argv is built from resolved installation paths; the child must survive ctx.
	cmd := exec.Command(argv[0], argv[1:]...)
	detached := setDetachedProcAttr(cmd)

	logger.InfoKV(ctx, "Starting detached process", "command", cmd.String(), "detached", detached)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", argv[0], err)
	}

	handle := &Handle{
		PID:      cmd.Process.Pid,
		Detached: detached,
	}

	if err := cmd.Process.Release(); err != nil {
		logger.WarnKV(ctx, "Failed to release process", "pid", handle.PID, "error", err)
	}

	return handle, nil
}
