package treesync

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/desktop-updater/internal/domain/update"
)

var errSimulatedCrash = errors.New("simulated crash")

// writeFile creates parent directories and writes contents with mode.
func writeFile(t *testing.T, path, contents string, mode fs.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), mode))
	require.NoError(t, os.Chmod(path, mode))
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(data)
}

// snapshot captures the observable state of a tree: file contents and modes,
// directories and symlink targets.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()

	state := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err)

		rel, relErr := filepath.Rel(root, path)
		require.NoError(t, relErr)

		info, infoErr := os.Lstat(path)
		require.NoError(t, infoErr)

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, linkErr := os.Readlink(path)
			require.NoError(t, linkErr)

			state[rel] = "link:" + target
		case d.IsDir():
			state[rel] = "dir"
		default:
			state[rel] = info.Mode().Perm().String() + ":" + readFile(t, path)
		}

		return nil
	})
	require.NoError(t, err)

	return state
}

// newStaging builds a representative staged tree with a nested directory,
// an executable, and a relative symlink.
func newStaging(t *testing.T) string {
	t.Helper()

	src := filepath.Join(t.TempDir(), "update")
	writeFile(t, filepath.Join(src, "MacOS", "App"), "binary v2", 0o755)
	writeFile(t, filepath.Join(src, "Resources", "config.json"), `{"v":2}`, 0o644)
	writeFile(t, filepath.Join(src, "Frameworks", "Lib.framework", "Versions", "A", "Lib"), "lib v2", 0o755)
	require.NoError(t, os.Symlink("A", filepath.Join(src, "Frameworks", "Lib.framework", "Versions", "Current")))

	return src
}

// TestPlan_OrdersDirectoriesBeforeContents checks lexical depth-first order.
func TestPlan_OrdersDirectoriesBeforeContents(t *testing.T) {
	t.Parallel()

	src := newStaging(t)
	dst := t.TempDir()

	plan, err := Plan(context.Background(), src, dst)
	require.NoError(t, err)

	seen := make(map[string]bool)
	paths := make([]string, 0, len(plan.Entries))

	for _, entry := range plan.Entries {
		parent := filepath.ToSlash(filepath.Dir(filepath.FromSlash(entry.RelPath)))
		if parent != "." {
			require.True(t, seen[parent], "parent of %s planned after it", entry.RelPath)
		}

		seen[entry.RelPath] = true
		paths = append(paths, entry.RelPath)
	}

	require.True(t, sort.StringsAreSorted(paths))
	require.Equal(t, 3, plan.Count(update.KindFile))
	require.Equal(t, 1, plan.Count(update.KindSymlink))
	require.Equal(t, 6, plan.Count(update.KindDirectory))
}

// TestSync_Idempotent applies the same staging twice and expects the same tree.
func TestSync_Idempotent(t *testing.T) {
	t.Parallel()

	src := newStaging(t)
	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "MacOS", "App"), "binary v1", 0o755)

	first, err := Sync(context.Background(), src, dst)
	require.NoError(t, err)
	require.Equal(t, 1, first.FilesReplaced)
	require.Equal(t, 2, first.FilesCopied)

	afterFirst := snapshot(t, dst)

	second, err := Sync(context.Background(), src, dst)
	require.NoError(t, err)
	require.Equal(t, afterFirst, snapshot(t, dst))

	// Identical files are still rewritten.
	require.Equal(t, 3, second.FilesReplaced)
	require.Zero(t, second.DirectoriesCreated)
}

// TestSync_SparseMerge leaves destination-only entries untouched.
func TestSync_SparseMerge(t *testing.T) {
	t.Parallel()

	src := newStaging(t)
	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "user-data.db"), "precious", 0o600)
	writeFile(t, filepath.Join(dst, "Resources", "cache", "blob"), "cached", 0o644)
	require.NoError(t, os.Symlink("/nowhere", filepath.Join(dst, "dangling")))

	_, err := Sync(context.Background(), src, dst)
	require.NoError(t, err)

	require.Equal(t, "precious", readFile(t, filepath.Join(dst, "user-data.db")))
	require.Equal(t, "cached", readFile(t, filepath.Join(dst, "Resources", "cache", "blob")))

	target, err := os.Readlink(filepath.Join(dst, "dangling"))
	require.NoError(t, err)
	require.Equal(t, "/nowhere", target)

	require.Equal(t, "binary v2", readFile(t, filepath.Join(dst, "MacOS", "App")))
}

// TestSync_PreservesModes carries source permission bits over.
func TestSync_PreservesModes(t *testing.T) {
	t.Parallel()

	src := newStaging(t)
	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "Resources", "config.json"), "old", 0o600)

	_, err := Sync(context.Background(), src, dst)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dst, "MacOS", "App"))
	require.NoError(t, err)
	require.Equal(t, fs.FileMode(0o755), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(dst, "Resources", "config.json"))
	require.NoError(t, err)
	require.Equal(t, fs.FileMode(0o644), info.Mode().Perm())
}

// TestSync_SymlinkFidelity recreates links with verbatim targets, replacing
// existing links and files.
func TestSync_SymlinkFidelity(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	require.NoError(t, os.Symlink("../relative/target", filepath.Join(src, "rel")))
	require.NoError(t, os.Symlink("/absolute/missing", filepath.Join(src, "abs")))
	require.NoError(t, os.Symlink("old-file", filepath.Join(src, "over-file")))

	dst := t.TempDir()
	require.NoError(t, os.Symlink("stale", filepath.Join(dst, "rel")))
	writeFile(t, filepath.Join(dst, "over-file"), "regular", 0o644)

	report, err := Sync(context.Background(), src, dst)
	require.NoError(t, err)
	require.Equal(t, 3, report.SymlinksCreated)

	for name, want := range map[string]string{
		"rel":       "../relative/target",
		"abs":       "/absolute/missing",
		"over-file": "old-file",
	} {
		got, linkErr := os.Readlink(filepath.Join(dst, name))
		require.NoError(t, linkErr, name)
		require.Equal(t, want, got, name)
	}
}

// TestSync_TypeConflict rejects a file where the source has a directory and
// leaves the destination entry as it was.
func TestSync_TypeConflict(t *testing.T) {
	t.Parallel()

	src := newStaging(t)
	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "Resources"), "i am a file", 0o644)

	_, err := Sync(context.Background(), src, dst)
	require.ErrorIs(t, err, update.ErrTypeConflict)
	require.Equal(t, "i am a file", readFile(t, filepath.Join(dst, "Resources")))
}

// TestSync_FileOverDirectory rejects replacing a directory with a file.
func TestSync_FileOverDirectory(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "data"), "file", 0o644)

	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "data", "inside"), "keep", 0o644)

	_, err := Sync(context.Background(), src, dst)
	require.ErrorIs(t, err, update.ErrTypeConflict)
	require.Equal(t, "keep", readFile(t, filepath.Join(dst, "data", "inside")))
}

// TestApply_AtomicUnderCrash interrupts a replacement between the durable
// temporary copy and the rename; the destination keeps its old content.
func TestApply_AtomicUnderCrash(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "App"), "new content that is longer than the old one", 0o755)

	dst := t.TempDir()
	target := filepath.Join(dst, "App")
	writeFile(t, target, "old content", 0o755)

	plan, err := Plan(context.Background(), src, dst)
	require.NoError(t, err)

	var observedTemp string

	s := &syncer{beforeCommit: func(tmp, dest string) error {
		observedTemp = tmp

		require.Equal(t, target, dest)
		require.Equal(t, filepath.Dir(dest), filepath.Dir(tmp))
		require.Equal(t, "new content that is longer than the old one", readFile(t, tmp))
		require.Equal(t, "old content", readFile(t, dest))

		return errSimulatedCrash
	}}

	_, err = s.apply(context.Background(), plan)
	require.ErrorIs(t, err, update.ErrAtomicReplaceFailed)
	require.ErrorIs(t, err, errSimulatedCrash)
	require.Equal(t, "old content", readFile(t, target))

	_, err = os.Stat(observedTemp)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

// TestSync_ReclaimsCrashLeftover finishes cleanly over a temporary copy left
// by a process that died before renaming.
func TestSync_ReclaimsCrashLeftover(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "App"), "new", 0o755)

	dst := t.TempDir()
	target := filepath.Join(dst, "App")
	writeFile(t, target, "old", 0o755)

	leftover, err := writeTemp(filepath.Join(src, "App"), target, 0o755)
	require.NoError(t, err)
	require.Equal(t, "old", readFile(t, target))

	_, err = Sync(context.Background(), src, dst)
	require.NoError(t, err)
	require.Equal(t, "new", readFile(t, target))

	_, err = os.Stat(leftover)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

// TestSync_SourceNotFound reports a missing staging tree.
func TestSync_SourceNotFound(t *testing.T) {
	t.Parallel()

	_, err := Sync(context.Background(), filepath.Join(t.TempDir(), "missing"), t.TempDir())
	require.ErrorIs(t, err, update.ErrSourceNotFound)
	require.Equal(t, "SourceNotFound", update.KindOf(err))
}

// TestSync_DestinationRootMissing reports a missing or non-directory
// installation root before anything is planned.
func TestSync_DestinationRootMissing(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "d", "f.txt"), "nested", 0o644)

	missing := filepath.Join(t.TempDir(), "missing")

	_, err := Sync(context.Background(), src, missing)
	require.ErrorIs(t, err, update.ErrSourceNotFound)
	require.Equal(t, "SourceNotFound", update.KindOf(err))

	_, statErr := os.Stat(missing)
	require.ErrorIs(t, statErr, fs.ErrNotExist)

	flat := t.TempDir()
	writeFile(t, filepath.Join(flat, "only.txt"), "file", 0o644)

	_, err = Sync(context.Background(), flat, missing)
	require.Equal(t, "SourceNotFound", update.KindOf(err))

	notDir := filepath.Join(t.TempDir(), "install")
	writeFile(t, notDir, "not a directory", 0o644)

	_, err = Plan(context.Background(), src, notDir)
	require.ErrorIs(t, err, update.ErrTypeConflict)
	require.Equal(t, "not a directory", readFile(t, notDir))
}

// TestSync_EndToEndScenario replaces the binary and one resource while a
// destination-only file stays untouched.
func TestSync_EndToEndScenario(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "app.bin"), "v2", 0o755)
	writeFile(t, filepath.Join(src, "resources", "icon.png"), "icon v2", 0o644)

	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "app.bin"), "v1", 0o755)
	writeFile(t, filepath.Join(dst, "resources", "icon.png"), "icon v1", 0o644)
	writeFile(t, filepath.Join(dst, "resources", "readme.txt"), "keep me", 0o600)

	report, err := Sync(context.Background(), src, dst)
	require.NoError(t, err)
	require.Equal(t, 2, report.FilesReplaced)
	require.Zero(t, report.FilesCopied)

	require.Equal(t, map[string]string{
		".":                    "dir",
		"app.bin":              "-rwxr-xr-x:v2",
		"resources":            "dir",
		"resources/icon.png":   "-rw-r--r--:icon v2",
		"resources/readme.txt": "-rw-------:keep me",
	}, snapshot(t, dst))
}

// TestSync_Cycle rejects overlapping roots and entries landing in staging.
func TestSync_Cycle(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	_, err := Sync(context.Background(), root, root)
	require.ErrorIs(t, err, update.ErrCycle)

	_, err = Sync(context.Background(), root, filepath.Join(root, "inner"))
	require.ErrorIs(t, err, update.ErrCycle)

	// Staging nested in the destination is fine until an entry maps back into it.
	staging := filepath.Join(root, "Resources", "update")
	writeFile(t, filepath.Join(staging, "App"), "ok", 0o755)

	_, err = Sync(context.Background(), staging, root)
	require.NoError(t, err)

	writeFile(t, filepath.Join(staging, "Resources", "update", "loop"), "loop", 0o644)

	_, err = Sync(context.Background(), staging, root)
	require.ErrorIs(t, err, update.ErrCycle)
}

// TestSync_PermissionDenied maps refused writes to the permission kind.
func TestSync_PermissionDenied(t *testing.T) {
	t.Parallel()

	if os.Geteuid() == 0 {
		t.Skip("root bypasses permission checks")
	}

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "locked", "App"), "new", 0o644)

	dst := t.TempDir()
	locked := filepath.Join(dst, "locked")
	writeFile(t, filepath.Join(locked, "App"), "old", 0o644)
	require.NoError(t, os.Chmod(locked, 0o555))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	_, err := Sync(context.Background(), src, dst)
	require.ErrorIs(t, err, update.ErrPermissionDenied)
	require.Equal(t, "old", readFile(t, filepath.Join(locked, "App")))
}

// TestApply_StopsOnCanceledContext does not start work after cancellation.
func TestApply_StopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	src := newStaging(t)
	dst := t.TempDir()

	plan, err := Plan(context.Background(), src, dst)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Apply(ctx, plan)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, report.FilesWritten())
}
