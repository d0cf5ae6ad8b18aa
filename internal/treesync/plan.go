package treesync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oshokin/desktop-updater/internal/domain/update"
	"github.com/oshokin/desktop-updater/internal/logger"
)

// Plan walks sourceRoot depth-first in lexical order and returns the steps that
// reproduce it onto destRoot. Directories precede their contents. Entries that
// are neither directories, regular files nor symlinks are skipped.
func Plan(ctx context.Context, sourceRoot, destRoot string) (*update.Plan, error) {
	sourceRoot, destRoot, err := roots(sourceRoot, destRoot)
	if err != nil {
		return nil, err
	}

	plan := &update.Plan{
		SourceRoot: sourceRoot,
		DestRoot:   destRoot,
	}

	walkErr := filepath.WalkDir(sourceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return classify(fmt.Sprintf("walk %q", path), update.ErrSourceNotFound, err)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if path == sourceRoot {
			return nil
		}

		rel, err := filepath.Rel(sourceRoot, path)
		if err != nil {
			return fmt.Errorf("relative path of %q: %w", path, err)
		}

		entry := update.Entry{
			RelPath:    filepath.ToSlash(rel),
			SourcePath: path,
			DestPath:   filepath.Join(destRoot, rel),
		}

		if update.IsWithin(sourceRoot, entry.DestPath) {
			return fmt.Errorf("%q lands inside the source tree: %w", entry.DestPath, update.ErrCycle)
		}

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			entry.Kind = update.KindSymlink

			if entry.LinkTarget, err = os.Readlink(path); err != nil {
				return classify(fmt.Sprintf("read link %q", path), update.ErrSourceNotFound, err)
			}
		case d.IsDir():
			entry.Kind = update.KindDirectory
		case d.Type().IsRegular():
			entry.Kind = update.KindFile
		default:
			logger.DebugKV(ctx, "Skipping unsupported entry", "path", path, "type", d.Type().String())
			return nil
		}

		if entry.Kind != update.KindSymlink {
			info, infoErr := d.Info()
			if infoErr != nil {
				return classify(fmt.Sprintf("stat %q", path), update.ErrSourceNotFound, infoErr)
			}

			entry.Mode = info.Mode().Perm()
		}

		plan.Entries = append(plan.Entries, entry)

		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return plan, nil
}

// roots cleans both roots and enforces that both are existing directories
// and that the source neither equals nor contains the destination.
func roots(sourceRoot, destRoot string) (string, string, error) {
	source, err := filepath.Abs(sourceRoot)
	if err != nil {
		return "", "", fmt.Errorf("source root %q: %w", sourceRoot, err)
	}

	dest, err := filepath.Abs(destRoot)
	if err != nil {
		return "", "", fmt.Errorf("destination root %q: %w", destRoot, err)
	}

	source, dest = resolveLinks(source), resolveLinks(dest)

	if update.IsWithin(source, dest) {
		return "", "", fmt.Errorf("%q contains %q: %w", source, dest, update.ErrCycle)
	}

	info, err := os.Stat(source)
	if err != nil {
		return "", "", classify(fmt.Sprintf("source root %q", source), update.ErrSourceNotFound, err)
	}

	if !info.IsDir() {
		return "", "", fmt.Errorf("source root %q is not a directory: %w", source, update.ErrTypeConflict)
	}

	info, err = os.Stat(dest)
	if err != nil {
		return "", "", classify(fmt.Sprintf("destination root %q", dest), update.ErrSourceNotFound, err)
	}

	if !info.IsDir() {
		return "", "", fmt.Errorf("destination root %q is not a directory: %w", dest, update.ErrTypeConflict)
	}

	return source, dest, nil
}

// classify wraps err with the matching synchronizer kind. Permission errors
// map to ErrPermissionDenied and everything else to fallback.
func classify(op string, fallback, err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%s: %w: %w", op, update.ErrPermissionDenied, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, fallback, err)
	}
}

// resolveLinks evaluates symlinks in path when it exists so that both roots
// are compared in the same namespace.
func resolveLinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}

	return path
}
