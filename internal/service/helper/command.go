package helper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/desktop-updater/internal/domain/update"
	"github.com/oshokin/desktop-updater/internal/logger"
)

// Options are inputs accepted by the helper entry point.
type Options struct {
	// CommandPath is the serialized update.Command written by the host.
	CommandPath string
}

var (
	// errCommandPathRequired is returned when no command file is given.
	errCommandPathRequired = errors.New("command path must be provided")
	// errUpdateFailed is returned when any stage failed.
	errUpdateFailed = errors.New("update failed")
)

// Run loads the command, redirects logging to its diagnostic trace and
// executes every stage. It is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options, options ...Option) error {
	if opts == nil || opts.CommandPath == "" {
		return errCommandPathRequired
	}

	data, err := os.ReadFile(filepath.Clean(opts.CommandPath))
	if err != nil {
		return fmt.Errorf("read command: %w", err)
	}

	cmd, err := update.ParseCommand(data)
	if err != nil {
		return fmt.Errorf("parse command %q: %w", opts.CommandPath, err)
	}

	if cmd.LogFile != "" {
		trace, closeTrace := logger.NewFile(cmd.LogFile, logger.AtomicLevel())
		defer func() {
			_ = closeTrace()
		}()

		ctx = logger.ToContext(ctx, trace)
	}

	ctx = logger.WithKV(logger.WithName(ctx, "update-helper"), "attempt_id", cmd.AttemptID)

	res := NewRunner(options...).Execute(ctx, cmd, opts.CommandPath)
	logger.Sync(ctx)

	if !res.Success {
		return fmt.Errorf("%w at stage %s: %s", errUpdateFailed, res.Stage, res.Error)
	}

	return nil
}
