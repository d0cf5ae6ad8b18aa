package update

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validLayout() Layout {
	return Layout{
		AppBundlePath:  "/Applications/Demo.app",
		InstallRoot:    "/Applications/Demo.app/Contents",
		StagingPath:    "/Applications/Demo.app/Contents/Resources/update",
		ExecutablePath: "/Applications/Demo.app/Contents/MacOS/Demo",
		ProcessName:    "Demo",
		IsBundle:       true,
	}
}

// TestLayoutValidate covers absolute paths, staging placement and process name.
func TestLayoutValidate(t *testing.T) {
	t.Parallel()

	layout := validLayout()
	require.NoError(t, layout.Validate())

	relative := validLayout()
	relative.InstallRoot = "Contents"
	require.ErrorIs(t, relative.Validate(), errPathNotAbsolute)

	outside := validLayout()
	outside.StagingPath = "/tmp/update"
	require.ErrorIs(t, outside.Validate(), errStagingOutsideInstall)

	same := validLayout()
	same.StagingPath = same.InstallRoot
	require.ErrorIs(t, same.Validate(), errStagingOutsideInstall)

	unnamed := validLayout()
	unnamed.ProcessName = " "
	require.ErrorIs(t, unnamed.Validate(), errProcessNameEmpty)
}

// TestIsWithin checks lexical containment including sibling prefixes.
func TestIsWithin(t *testing.T) {
	t.Parallel()

	require.True(t, IsWithin("/a/b", "/a/b"))
	require.True(t, IsWithin("/a/b", "/a/b/c/d"))
	require.True(t, IsWithin("/a/b/", "/a/b/../b/c"))
	require.False(t, IsWithin("/a/b", "/a/bc"))
	require.False(t, IsWithin("/a/b", "/a"))
	require.False(t, IsWithin("/a/b", "/x/y"))
}

// TestKindOf maps wrapped sentinels to stable names.
func TestKindOf(t *testing.T) {
	t.Parallel()

	require.Empty(t, KindOf(nil))
	require.Equal(t, "TypeConflict", KindOf(fmt.Errorf("dir %q: %w", "/x", ErrTypeConflict)))
	require.Equal(t, "LaunchFailed", KindOf(fmt.Errorf("spawn: %w", ErrLaunchFailed)))
	require.Equal(t, "Unknown", KindOf(errors.New("boom")))
}

// TestPlanCount counts entries per kind.
func TestPlanCount(t *testing.T) {
	t.Parallel()

	plan := &Plan{Entries: []Entry{
		{RelPath: "a", Kind: KindDirectory},
		{RelPath: "a/b", Kind: KindFile},
		{RelPath: "a/c", Kind: KindFile},
		{RelPath: "a/l", Kind: KindSymlink},
	}}

	require.Equal(t, 1, plan.Count(KindDirectory))
	require.Equal(t, 2, plan.Count(KindFile))
	require.Equal(t, 1, plan.Count(KindSymlink))
	require.Equal(t, "Symlink", KindSymlink.String())
	require.Equal(t, "Unknown", Kind(0).String())
}

// TestCommandRoundtrip ensures the handoff survives serialization intact.
func TestCommandRoundtrip(t *testing.T) {
	t.Parallel()

	want := &Command{
		AttemptID:    "attempt-1",
		CreatedAt:    time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
		HostPID:      4242,
		Layout:       validLayout(),
		FromVersion:  "1.2.0",
		PollInterval: 250 * time.Millisecond,
		Relaunch:     []string{"/usr/bin/open", "/Applications/Demo.app"},
		LogFile:      "/tmp/desktop_updater_log.txt",
		ResultFile:   "/tmp/desktop_updater_result.yaml",
		HelperPath:   "/tmp/desktop_update_helper",
	}

	data, err := MarshalCommand(want)
	require.NoError(t, err)

	got, err := ParseCommand(data)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

// TestCommandValidate rejects commands the helper could not execute alone.
func TestCommandValidate(t *testing.T) {
	t.Parallel()

	_, err := MarshalCommand(&Command{Layout: validLayout(), Relaunch: []string{"/bin/app"}})
	require.ErrorIs(t, err, errAttemptIDRequired)

	_, err = MarshalCommand(&Command{AttemptID: "x", Layout: validLayout()})
	require.ErrorIs(t, err, errRelaunchRequired)

	_, err = MarshalCommand(&Command{
		AttemptID: "x",
		Layout:    validLayout(),
		Relaunch:  []string{"/bin/app"},
		LogFile:   "relative.log",
	})
	require.ErrorIs(t, err, errPathNotAbsolute)

	_, err = MarshalCommand(&Command{
		AttemptID:  "x",
		Layout:     validLayout(),
		Relaunch:   []string{"/bin/app"},
		HelperPath: filepath.Join("tmp", "desktop_update_helper"),
	})
	require.ErrorIs(t, err, errPathNotAbsolute)

	_, err = ParseCommand([]byte("attempt_id: [unterminated"))
	require.Error(t, err)
}

// TestResultClone verifies the actor is deep-copied.
func TestResultClone(t *testing.T) {
	t.Parallel()

	var nilResult *Result
	require.Nil(t, nilResult.Clone())

	original := &Result{AttemptID: "a", Actor: &Actor{Hostname: "host", Username: "user"}}
	cloned := original.Clone()
	cloned.Actor.Username = "other"

	require.Equal(t, "user", original.Actor.Username)
}

// TestFromKind inverts KindOf for every known kind.
func TestFromKind(t *testing.T) {
	t.Parallel()

	for _, k := range kinds {
		require.ErrorIs(t, FromKind(KindOf(k.err)), k.err)
	}

	require.NoError(t, FromKind("Unknown"))
}
