// Package update contains the core domain types of the self-update mechanism.
//
// Layout describes where the running installation lives, Plan lists the
// filesystem operations needed to apply a staged tree, Command is the
// serializable handoff given to the detached helper, and Result records the
// outcome of an attempt for postmortem inspection. The error kinds shared by
// the synchronizer and the orchestrator are declared here as sentinels.
package update
