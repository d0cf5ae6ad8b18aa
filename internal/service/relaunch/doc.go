// Package relaunch implements TriggerUpdateAndRelaunch for the running host.
//
// The Orchestrator moves through Idle, PathsResolved, ScriptWritten,
// ScriptLaunched and HostTerminated. By default it installs a copy of this
// binary as a helper together with a serialized update.Command; in shell mode
// it renders a bash script instead. The artifact is launched detached and the
// host exits with code 0. Failures before the launch abandon the update and
// the host keeps running.
package relaunch
