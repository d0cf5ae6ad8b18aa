package relaunch

import (
	"bytes"
	"crypto"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/desktop-updater/internal/domain/update"
)

// probeName is the file name go-update derives its write probe from.
const probeName = "desktop-updater-probe"

// probeWritable checks that the install root and the executable's directory
// accept new files before anything is written, so a read-only installation
// is refused while the host is still running.
func probeWritable(layout *update.Layout) error {
	dirs := []string{layout.InstallRoot}
	if exeDir := filepath.Dir(layout.ExecutablePath); exeDir != layout.InstallRoot {
		dirs = append(dirs, exeDir)
	}

	for _, dir := range dirs {
		probe := &goupdate.Options{
			TargetPath: filepath.Join(dir, probeName),
			TargetMode: 0o600,
		}

		if err := probe.CheckPermissions(); err != nil {
			return fmt.Errorf("probe %q: %w: %w", dir, update.ErrPermissionDenied, err)
		}
	}

	return nil
}

// installHelper copies the source binary to target with execute permission.
// The copy is checksum-verified and swapped in by go-update.
func installHelper(source, target string) error {
	data, err := os.ReadFile(filepath.Clean(source))
	if err != nil {
		return fmt.Errorf("read helper source: %w", err)
	}

	sum := sha256.Sum256(data)

	// go-update swaps an existing target; give it one to swap on first install.
	if _, err = os.Stat(target); errors.Is(err, fs.ErrNotExist) {
		if err = os.WriteFile(target, nil, 0o700); err != nil { //nolint:gosec // Replaced by the helper below.
			return fmt.Errorf("create helper placeholder: %w", err)
		}
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: helperMode,
		Checksum:   sum[:],
		Hash:       crypto.SHA256,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		if rollbackErr := goupdate.RollbackError(err); rollbackErr != nil {
			return fmt.Errorf("apply helper: %w (rollback: %w)", err, rollbackErr)
		}

		return fmt.Errorf("apply helper: %w", err)
	}

	// The umask may have narrowed TargetMode.
	if err = os.Chmod(target, helperMode); err != nil {
		return fmt.Errorf("chmod helper: %w", err)
	}

	return nil
}

// writeFileAtomic publishes data at path through a flushed temporary file.
func writeFileAtomic(path string, data []byte, mode fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}

	tmpPath := tmp.Name()

	fail := func(cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)

		return cause
	}

	if _, err = tmp.Write(data); err != nil {
		return fail(err)
	}

	if err = tmp.Sync(); err != nil {
		return fail(err)
	}

	if err = tmp.Chmod(mode); err != nil {
		return fail(err)
	}

	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return nil
}
