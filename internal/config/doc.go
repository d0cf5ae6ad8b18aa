// Package config defines the relaunch policy used by the orchestrator, the
// detached helper and the CLI, and provides helpers to load, validate and
// save it in YAML format.
//
// Every temporary artifact (script, helper binary, handoff command, result
// record, diagnostic trace) lives at a fixed name inside TempDir so a
// postmortem can find it without knowing the attempt.
package config
