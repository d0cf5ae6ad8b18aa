package result

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/desktop-updater/internal/config"
	"github.com/oshokin/desktop-updater/internal/domain/update"
	"github.com/oshokin/desktop-updater/internal/logger"
)

// Repository defines persistence operations for the attempt result.
type Repository interface {
	Load(ctx context.Context) (*update.Result, error)
	Save(ctx context.Context, result *update.Result) error
}

// FileRepository persists the attempt result to a YAML file on disk.
type FileRepository struct {
	// path is the filesystem location of the YAML result file.
	path string
	// mu protects concurrent access to the result file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when no attempt has recorded a result yet.
	ErrNotFound = errors.New("result not found")
	// errNilResult is returned when Save receives nothing to store.
	errNilResult = errors.New("result is not set")
	// errWatcherClosed is returned when fsnotify stops delivering events.
	errWatcherClosed = errors.New("watcher closed unexpectedly")
)

// NewFileRepository creates a repository that reads/writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the location of the result file.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the result from disk.
func (r *FileRepository) Load(_ context.Context) (*update.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.read()
}

// Save writes the result next to its final location and renames it into
// place, so readers never observe a partial record.
func (r *FileRepository) Save(ctx context.Context, result *update.Result) error {
	if result == nil {
		return errNilResult
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("create result directory: %w", err)
	}

	tmpPath := r.path + ".tmp"
	if err = os.WriteFile(tmpPath, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write result file: %w", err)
	}

	if err = os.Rename(tmpPath, r.path); err != nil {
		if cleanupErr := os.Remove(tmpPath); cleanupErr != nil {
			logger.WarnKV(ctx, "Failed to remove temporary result file", "path", tmpPath, "error", cleanupErr)
		}

		return fmt.Errorf("publish result file: %w", err)
	}

	logger.DebugKV(ctx, "Result recorded", "path", r.path, "attempt_id", result.AttemptID)

	return nil
}

// Remove deletes the result file. A missing file is not an error.
func (r *FileRepository) Remove(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove result file: %w", err)
	}

	return nil
}

// Watch returns the result as soon as it exists. When attemptID is set,
// records from other attempts are ignored. It blocks until ctx is done.
func (r *FileRepository) Watch(ctx context.Context, attemptID string) (*update.Result, error) {
	if res, err := r.matching(ctx, attemptID); err == nil {
		return res, nil
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create result directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	defer func() {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to close watcher", "error", closeErr)
		}
	}()

	// Watch the directory: the file is created by rename and may not exist yet.
	if err = watcher.Add(dir); err != nil {
		return nil, fmt.Errorf("watch %q: %w", dir, err)
	}

	// The record may have landed between the first read and Add.
	if res, readErr := r.matching(ctx, attemptID); readErr == nil {
		return res, nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil, errWatcherClosed
			}

			if filepath.Clean(event.Name) != r.path || (!event.Has(fsnotify.Create) && !event.Has(fsnotify.Write)) {
				continue
			}

			res, readErr := r.matching(ctx, attemptID)
			if readErr != nil {
				logger.DebugKV(ctx, "Result not ready", "error", readErr)
				continue
			}

			return res, nil
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil, errWatcherClosed
			}

			return nil, fmt.Errorf("watcher error: %w", watchErr)
		}
	}
}

// matching loads the result and rejects records from other attempts.
func (r *FileRepository) matching(ctx context.Context, attemptID string) (*update.Result, error) {
	res, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}

	if attemptID != "" && res.AttemptID != attemptID {
		return nil, fmt.Errorf("attempt %q: %w", attemptID, ErrNotFound)
	}

	return res, nil
}

func (r *FileRepository) read() (*update.Result, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read result file: %w", err)
	}

	var res update.Result
	if err = yaml.Unmarshal(contents, &res); err != nil {
		return nil, fmt.Errorf("decode result file: %w", err)
	}

	return &res, nil
}
