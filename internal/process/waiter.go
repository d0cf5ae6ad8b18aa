package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mitchellh/go-ps"

	"github.com/oshokin/desktop-updater/internal/config"
	"github.com/oshokin/desktop-updater/internal/logger"
)

// truncatedCommLength is the shortest name length at which the kernel may have
// cut the executable name short (15 on Linux, 16 on macOS).
const truncatedCommLength = 15

var (
	// errStillRunning keeps the poll loop going.
	errStillRunning = errors.New("process is still running")
	// errEmptyName is returned when there is nothing to wait for.
	errEmptyName = errors.New("process name must be provided")
)

// ListFunc enumerates the process table.
type ListFunc func() ([]ps.Process, error)

// Waiter polls the process table until no process carries a given name.
type Waiter struct {
	list     ListFunc
	interval time.Duration
	selfPID  int
}

// WaiterOption customizes a Waiter.
type WaiterOption func(*Waiter)

// WithLister replaces the system process table, typically in tests.
func WithLister(list ListFunc) WaiterOption {
	return func(w *Waiter) {
		w.list = list
	}
}

// WithSelfPID sets the PID excluded from matching. Defaults to the current process.
func WithSelfPID(pid int) WaiterOption {
	return func(w *Waiter) {
		w.selfPID = pid
	}
}

// NewWaiter creates a Waiter sleeping interval between scans. A non-positive
// interval falls back to config.DefaultPollInterval.
func NewWaiter(interval time.Duration, options ...WaiterOption) *Waiter {
	w := &Waiter{
		list:     ps.Processes,
		interval: interval,
		selfPID:  os.Getpid(),
	}

	for _, option := range options {
		option(w)
	}

	if w.interval <= 0 {
		w.interval = config.DefaultPollInterval
	}

	return w
}

// Find returns the PIDs of processes carrying name, excluding the waiter itself.
func (w *Waiter) Find(name string) ([]int, error) {
	processes, err := w.list()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var pids []int

	for _, p := range processes {
		if p == nil || p.Pid() == w.selfPID {
			continue
		}

		if MatchesName(p.Executable(), name) {
			pids = append(pids, p.Pid())
		}
	}

	return pids, nil
}

// WaitForExit blocks until no process named name remains. There is no
// timeout: only ctx cancellation ends the wait early. Listing failures are
// logged and retried on the next tick.
func (w *Waiter) WaitForExit(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return errEmptyName
	}

	operation := func() error {
		pids, err := w.Find(name)
		if err != nil {
			return err
		}

		if len(pids) > 0 {
			return fmt.Errorf("%s %v: %w", name, pids, errStillRunning)
		}

		return nil
	}

	notify := func(err error, next time.Duration) {
		if errors.Is(err, errStillRunning) {
			logger.DebugKV(ctx, "Waiting for process to exit", "process", name, "next_check", next)
			return
		}

		logger.WarnKV(ctx, "Process table scan failed", "error", err, "next_check", next)
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(w.interval), ctx)

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return fmt.Errorf("wait for %q to exit: %w", name, err)
	}

	logger.InfoKV(ctx, "Process is gone", "process", name)

	return nil
}

// MatchesName reports whether a process table name refers to the executable
// name. Kernels truncate long names, so a maximal-length prefix also matches.
func MatchesName(reported, name string) bool {
	if reported == "" {
		return false
	}

	if reported == name {
		return true
	}

	return len(reported) >= truncatedCommLength && strings.HasPrefix(name, reported)
}
