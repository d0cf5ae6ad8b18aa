// Package version exposes build metadata for the project and compares
// installed application versions.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. Short and Full render them for CLI output and logs; Compare
// orders two version strings the way bundle metadata spells them.
package version
