package update

import "time"

// Stage is a step of the out-of-process part of the relaunch protocol.
type Stage string

const (
	// StageWaiting polls the process table until the host is gone.
	StageWaiting Stage = "waiting"
	// StageCopying synchronizes the staging tree onto the install root.
	StageCopying Stage = "copying"
	// StageCleaning removes the staging tree.
	StageCleaning Stage = "cleaning"
	// StageRelaunching starts the updated application.
	StageRelaunching Stage = "relaunching"
	// StageSelfDeleting removes the helper's own artifacts.
	StageSelfDeleting Stage = "self_deleting"
	// StageDone marks a finished attempt.
	StageDone Stage = "done"
)

// Actor identifies the machine and user an attempt ran for.
type Actor struct {
	// Hostname is the machine name.
	Hostname string `yaml:"hostname"`
	// Username is the system user.
	Username string `yaml:"username"`
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// Result is the postmortem record of one helper run.
type Result struct {
	// AttemptID matches Command.AttemptID.
	AttemptID string `yaml:"attempt_id"`
	// Success is true when every stage completed.
	Success bool `yaml:"success"`
	// Stage is the last stage reached.
	Stage Stage `yaml:"stage"`
	// ErrorKind is the stable kind name of the first failure.
	ErrorKind string `yaml:"error_kind,omitempty"`
	// Error is the failure message.
	Error string `yaml:"error,omitempty"`
	// FromVersion is the version before the swap.
	FromVersion string `yaml:"from_version,omitempty"`
	// ToVersion is the version read back after the swap.
	ToVersion string `yaml:"to_version,omitempty"`
	// FilesReplaced counts regular files written by the synchronizer.
	FilesReplaced int `yaml:"files_replaced"`
	// Actor is who the attempt ran for.
	Actor *Actor `yaml:"actor,omitempty"`
	// StartedAt is when the helper started.
	StartedAt time.Time `yaml:"started_at"`
	// FinishedAt is when the helper wrote this record.
	FinishedAt time.Time `yaml:"finished_at"`
}

// Clone returns a copy of the result to avoid leaking internal references.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}

	cloned := *r
	cloned.Actor = r.Actor.Clone()

	return &cloned
}
