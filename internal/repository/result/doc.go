// Package result persists the outcome of the last relaunch attempt.
//
// The detached helper writes the record atomically once it finishes; the
// relaunched application (or the status command) reads it back, optionally
// waiting for it to appear.
package result
