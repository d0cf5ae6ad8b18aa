package version

import (
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}

// Compare returns -1, 0 or 1 when a is older, equal or newer than b.
// Bundle versions such as "42" or "1.4.0+7" are accepted.
func Compare(a, b string) (int, error) {
	left, err := goversion.NewVersion(strings.TrimSpace(a))
	if err != nil {
		return 0, fmt.Errorf("parse version %q: %w", a, err)
	}

	right, err := goversion.NewVersion(strings.TrimSpace(b))
	if err != nil {
		return 0, fmt.Errorf("parse version %q: %w", b, err)
	}

	return left.Compare(right), nil
}
