package process

import (
	"context"
	"errors"
	"os"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"
)

// fakeProcess implements ps.Process for a scripted process table.
type fakeProcess struct {
	pid  int
	name string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 1 }
func (p fakeProcess) Executable() string { return p.name }

// scriptedTable returns `running` for the first n scans and an empty table after.
type scriptedTable struct {
	mu      sync.Mutex
	scans   int
	n       int
	running []ps.Process
}

func (s *scriptedTable) list() ([]ps.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scans++
	if s.scans <= s.n {
		return s.running, nil
	}

	return []ps.Process{fakeProcess{pid: 1, name: "launchd"}}, nil
}

func (s *scriptedTable) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.scans
}

// TestMatchesName handles exact and kernel-truncated names.
func TestMatchesName(t *testing.T) {
	t.Parallel()

	require.True(t, MatchesName("Demo", "Demo"))
	require.False(t, MatchesName("Dem", "Demo"))
	require.False(t, MatchesName("", "Demo"))
	require.True(t, MatchesName("desktop-updater", "desktop-updater-app"))
	require.False(t, MatchesName("desktop-update", "desktop-updater-app"))
}

// TestWaiter_FindExcludesSelf never reports the waiter's own PID.
func TestWaiter_FindExcludesSelf(t *testing.T) {
	t.Parallel()

	table := func() ([]ps.Process, error) {
		return []ps.Process{
			fakeProcess{pid: 10, name: "Demo"},
			fakeProcess{pid: 11, name: "Demo"},
			fakeProcess{pid: 12, name: "Other"},
		}, nil
	}

	w := NewWaiter(time.Millisecond, WithLister(table), WithSelfPID(11))

	pids, err := w.Find("Demo")
	require.NoError(t, err)
	require.Equal(t, []int{10}, pids)
}

// TestWaiter_WaitsUntilGone returns only after the name disappears.
func TestWaiter_WaitsUntilGone(t *testing.T) {
	t.Parallel()

	table := &scriptedTable{
		n:       4,
		running: []ps.Process{fakeProcess{pid: 42, name: "Demo"}},
	}

	w := NewWaiter(time.Millisecond, WithLister(table.list), WithSelfPID(-1))

	require.NoError(t, w.WaitForExit(context.Background(), "Demo"))
	require.Equal(t, 5, table.count())
}

// TestWaiter_RetriesListingFailures treats scan errors as transient.
func TestWaiter_RetriesListingFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	table := func() ([]ps.Process, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("proc unavailable")
		}

		return nil, nil
	}

	w := NewWaiter(time.Millisecond, WithLister(table))

	require.NoError(t, w.WaitForExit(context.Background(), "Demo"))
	require.Equal(t, 3, calls)
}

// TestWaiter_CancelStopsWaiting ends an otherwise endless wait.
func TestWaiter_CancelStopsWaiting(t *testing.T) {
	t.Parallel()

	forever := func() ([]ps.Process, error) {
		return []ps.Process{fakeProcess{pid: 7, name: "Demo"}}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := NewWaiter(time.Millisecond, WithLister(forever)).WaitForExit(ctx, "Demo")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestWaiter_RejectsEmptyName refuses to wait for nothing.
func TestWaiter_RejectsEmptyName(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, NewWaiter(0).WaitForExit(context.Background(), " "), errEmptyName)
}

// TestDetachedLauncher starts a real child in its own session.
func TestDetachedLauncher(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}

	handle, err := DetachedLauncher{}.Launch(context.Background(), []string{"/bin/sh", "-c", "exit 0"})
	require.NoError(t, err)
	require.Positive(t, handle.PID)
	require.NotEqual(t, os.Getpid(), handle.PID)
	require.True(t, handle.Detached)

	_, err = DetachedLauncher{}.Launch(context.Background(), nil)
	require.ErrorIs(t, err, errEmptyCommand)

	_, err = DetachedLauncher{}.Launch(context.Background(), []string{"/definitely/not/here"})
	require.Error(t, err)
}
