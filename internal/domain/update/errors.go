package update

import "errors"

// Synchronizer error kinds. Each aborts the synchronizer immediately.
var (
	// ErrSourceNotFound is returned when the source root or a planned entry is missing.
	ErrSourceNotFound = errors.New("source not found")
	// ErrPermissionDenied is returned when the filesystem refuses an operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTypeConflict is returned when a destination entry has an incompatible type.
	ErrTypeConflict = errors.New("type conflict")
	// ErrAtomicReplaceFailed is returned when a regular file could not be swapped in.
	ErrAtomicReplaceFailed = errors.New("atomic replace failed")
	// ErrCycle is returned when the source tree contains the destination or vice versa.
	ErrCycle = errors.New("source and destination overlap")
)

// Orchestrator error kinds. Both are pre-commit: the host keeps running untouched.
var (
	// ErrScriptWriteFailed is returned when the relaunch script or helper cannot be installed.
	ErrScriptWriteFailed = errors.New("script write failed")
	// ErrLaunchFailed is returned when the detached helper cannot be spawned.
	ErrLaunchFailed = errors.New("launch failed")
)

// kinds maps sentinels to the stable names used in logs, result records and RPC status.
//
//nolint:gochecknoglobals // Read-only lookup table.
var kinds = []struct {
	err  error
	name string
}{
	{ErrSourceNotFound, "SourceNotFound"},
	{ErrPermissionDenied, "PermissionDenied"},
	{ErrTypeConflict, "TypeConflict"},
	{ErrAtomicReplaceFailed, "AtomicReplaceFailed"},
	{ErrCycle, "Cycle"},
	{ErrScriptWriteFailed, "ScriptWriteFailed"},
	{ErrLaunchFailed, "LaunchFailed"},
}

// KindOf returns the stable kind name of err, or "Unknown" for foreign errors and "" for nil.
func KindOf(err error) string {
	if err == nil {
		return ""
	}

	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}

	return "Unknown"
}

// FromKind returns the sentinel named by a KindOf result, or nil for unknown names.
func FromKind(name string) error {
	for _, k := range kinds {
		if k.name == name {
			return k.err
		}
	}

	return nil
}
