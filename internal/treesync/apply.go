package treesync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/oshokin/desktop-updater/internal/domain/update"
	"github.com/oshokin/desktop-updater/internal/logger"
)

// tempSuffix names the in-flight copy next to its destination. The name is
// fixed per destination so a copy left behind by a crash is reclaimed by the
// next run instead of accumulating.
const tempSuffix = ".desktop-updater.tmp"

// Report summarizes what Apply did to the destination.
type Report struct {
	// DirectoriesCreated counts directories that did not exist before.
	DirectoriesCreated int
	// FilesCopied counts regular files that were absent from the destination.
	FilesCopied int
	// FilesReplaced counts regular files swapped over an existing destination.
	FilesReplaced int
	// SymlinksCreated counts recreated symbolic links.
	SymlinksCreated int
}

// FilesWritten returns the number of regular files written.
func (r *Report) FilesWritten() int {
	return r.FilesCopied + r.FilesReplaced
}

// Sync plans and applies sourceRoot onto destRoot.
func Sync(ctx context.Context, sourceRoot, destRoot string) (*Report, error) {
	plan, err := Plan(ctx, sourceRoot, destRoot)
	if err != nil {
		return nil, err
	}

	return Apply(ctx, plan)
}

// Apply performs the plan in order and stops at the first failure. Entries
// already applied stay applied; destination entries absent from the plan are
// never touched.
func Apply(ctx context.Context, plan *update.Plan) (*Report, error) {
	return defaultSyncer.apply(ctx, plan)
}

// syncer carries the commit hook used to observe the window between a fully
// written temporary copy and the rename that publishes it.
type syncer struct {
	beforeCommit func(tmp, dest string) error
}

//nolint:gochecknoglobals // Stateless default used by the package functions.
var defaultSyncer = &syncer{}

func (s *syncer) apply(ctx context.Context, plan *update.Plan) (*Report, error) {
	report := new(Report)

	for i := range plan.Entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		entry := &plan.Entries[i]

		if update.IsWithin(plan.SourceRoot, entry.DestPath) {
			return report, fmt.Errorf("%q lands inside the source tree: %w", entry.DestPath, update.ErrCycle)
		}

		var err error

		switch entry.Kind {
		case update.KindDirectory:
			err = s.applyDirectory(entry, report)
		case update.KindSymlink:
			err = s.applySymlink(entry, report)
		case update.KindFile:
			err = s.applyFile(entry, report)
		default:
			err = fmt.Errorf("%q has unknown kind %d: %w", entry.RelPath, entry.Kind, update.ErrTypeConflict)
		}

		if err != nil {
			logger.ErrorKV(ctx, "Synchronization aborted", "path", entry.RelPath, "kind", entry.Kind.String(), "error", err)
			return report, err
		}

		logger.DebugKV(ctx, "Entry synchronized", "path", entry.RelPath, "kind", entry.Kind.String())
	}

	return report, nil
}

// applyDirectory creates the destination directory when it is absent.
func (s *syncer) applyDirectory(entry *update.Entry, report *Report) error {
	info, err := os.Lstat(entry.DestPath)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("directory %q exists as %s: %w", entry.DestPath, info.Mode().Type(), update.ErrTypeConflict)
		}

		return nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return classify(fmt.Sprintf("stat %q", entry.DestPath), update.ErrPermissionDenied, err)
	}

	if err = os.Mkdir(entry.DestPath, dirMode(entry.Mode)); err != nil {
		return classify(fmt.Sprintf("create directory %q", entry.DestPath), update.ErrPermissionDenied, err)
	}

	report.DirectoriesCreated++

	return nil
}

// applySymlink recreates the link with its verbatim target. The new link is
// created under a temporary name and renamed over the old entry, so the path
// never disappears.
func (s *syncer) applySymlink(entry *update.Entry, report *Report) error {
	if info, err := os.Lstat(entry.DestPath); err == nil && info.IsDir() {
		return fmt.Errorf("symlink %q exists as a directory: %w", entry.DestPath, update.ErrTypeConflict)
	}

	tmp := tempPath(entry.DestPath)
	if err := removeStale(tmp); err != nil {
		return err
	}

	if err := os.Symlink(entry.LinkTarget, tmp); err != nil {
		return classify(fmt.Sprintf("create symlink %q", entry.DestPath), update.ErrPermissionDenied, err)
	}

	if err := os.Rename(tmp, entry.DestPath); err != nil {
		_ = os.Remove(tmp)
		return classify(fmt.Sprintf("replace symlink %q", entry.DestPath), update.ErrAtomicReplaceFailed, err)
	}

	report.SymlinksCreated++

	return nil
}

// applyFile copies or atomically replaces a regular file. Identical content
// is rewritten too.
func (s *syncer) applyFile(entry *update.Entry, report *Report) error {
	existed := false

	info, err := os.Lstat(entry.DestPath)
	switch {
	case err == nil && info.IsDir():
		return fmt.Errorf("file %q exists as a directory: %w", entry.DestPath, update.ErrTypeConflict)
	case err == nil:
		existed = true
	case !errors.Is(err, fs.ErrNotExist):
		return classify(fmt.Sprintf("stat %q", entry.DestPath), update.ErrPermissionDenied, err)
	}

	if err = s.replaceFile(entry.SourcePath, entry.DestPath, entry.Mode); err != nil {
		return err
	}

	if existed {
		report.FilesReplaced++
	} else {
		report.FilesCopied++
	}

	return nil
}

// replaceFile writes source into a temporary file beside dest, flushes it,
// applies mode and renames it over dest, then flushes the parent directory.
// A crash at any point leaves either the old or the new content at dest.
func (s *syncer) replaceFile(source, dest string, mode fs.FileMode) error {
	tmp, err := writeTemp(source, dest, mode)
	if err != nil {
		return err
	}

	if s.beforeCommit != nil {
		if err = s.beforeCommit(tmp, dest); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("replace %q: %w: %w", dest, update.ErrAtomicReplaceFailed, err)
		}
	}

	if err = os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return classify(fmt.Sprintf("rename over %q", dest), update.ErrAtomicReplaceFailed, err)
	}

	if err = syncDir(filepath.Dir(dest)); err != nil {
		return classify(fmt.Sprintf("flush directory of %q", dest), update.ErrAtomicReplaceFailed, err)
	}

	return nil
}

// writeTemp produces the durable temporary copy of source for dest and
// returns its path. On failure nothing is left behind and dest is untouched.
func writeTemp(source, dest string, mode fs.FileMode) (string, error) {
	in, err := os.Open(filepath.Clean(source))
	if err != nil {
		return "", classify(fmt.Sprintf("open source %q", source), update.ErrSourceNotFound, err)
	}

	defer func() {
		_ = in.Close()
	}()

	tmp := tempPath(dest)
	if err = removeStale(tmp); err != nil {
		return "", err
	}

	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // Path derives from the planned destination.
	if err != nil {
		return "", classify(fmt.Sprintf("create temporary copy of %q", dest), update.ErrAtomicReplaceFailed, err)
	}

	fail := func(op string, cause error) (string, error) {
		_ = out.Close()
		_ = os.Remove(tmp)

		return "", classify(fmt.Sprintf("%s %q", op, tmp), update.ErrAtomicReplaceFailed, cause)
	}

	if _, err = io.Copy(out, in); err != nil {
		return fail("copy into", err)
	}

	if err = out.Sync(); err != nil {
		return fail("flush", err)
	}

	if err = out.Chmod(mode.Perm()); err != nil {
		return fail("chmod", err)
	}

	if err = out.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", classify(fmt.Sprintf("close %q", tmp), update.ErrAtomicReplaceFailed, err)
	}

	return tmp, nil
}

// tempPath is the fixed in-flight name for dest.
func tempPath(dest string) string {
	return filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+tempSuffix)
}

// removeStale deletes a temporary copy left by an interrupted run.
func removeStale(tmp string) error {
	if err := os.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return classify(fmt.Sprintf("remove stale %q", tmp), update.ErrAtomicReplaceFailed, err)
	}

	return nil
}

// syncDir flushes directory metadata so the rename survives a power loss.
// File systems that cannot fsync directories report EINVAL, which is ignored.
func syncDir(dir string) error {
	d, err := os.Open(filepath.Clean(dir))
	if err != nil {
		return err
	}

	defer func() {
		_ = d.Close()
	}()

	if err = d.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) {
		return err
	}

	return nil
}

// dirMode keeps the owner able to populate a directory it creates.
func dirMode(mode fs.FileMode) fs.FileMode {
	if mode == 0 {
		return 0o755
	}

	return mode.Perm() | 0o700
}
