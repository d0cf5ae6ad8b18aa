package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// traceMaxSizeMB caps a single diagnostic file before rotation.
	traceMaxSizeMB = 5
	// traceMaxBackups keeps a few previous attempts around for postmortems.
	traceMaxBackups = 3
	// traceMaxAgeDays drops rotated traces after a month.
	traceMaxAgeDays = 30
)

// NewFile creates a logger that writes to stdout and to a rotating diagnostic
// file at path. The returned close function releases the file handle.
//
// The file is opened lazily by lumberjack on first write. A failing write is
// reported to stderr by zap and never surfaces to the caller.
func NewFile(path string, level zapcore.LevelEnabler, options ...zap.Option) (*zap.SugaredLogger, func() error) {
	if level == nil {
		level = defaultLevel
	}

	// A missing parent directory would make every write fail; try once up front.
	_ = os.MkdirAll(filepath.Dir(path), 0o755) //nolint:mnd // Standard directory permissions.

	trace := &lumberjack.Logger{
		Filename:   filepath.ToSlash(path),
		MaxSize:    traceMaxSizeMB,
		MaxBackups: traceMaxBackups,
		MaxAge:     traceMaxAgeDays,
	}

	core := zapcore.NewTee(
		zapcore.NewCore(newConsoleEncoder(zapcore.CapitalColorLevelEncoder), zapcore.AddSync(os.Stdout), level),
		zapcore.NewCore(newConsoleEncoder(zapcore.CapitalLevelEncoder), zapcore.AddSync(trace), level),
	)

	return zap.New(core, options...).Sugar(), trace.Close
}
