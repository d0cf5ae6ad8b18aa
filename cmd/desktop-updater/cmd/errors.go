package cmd

import "errors"

var (
	// errUnknownLogLevel is returned when --log-level cannot be parsed.
	errUnknownLogLevel = errors.New("unknown log level")
	// errUpdateNotSuccessful is returned by status when the recorded attempt failed.
	errUpdateNotSuccessful = errors.New("last update attempt failed")
)
