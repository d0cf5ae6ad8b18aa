// Package common holds helpers shared by several services.
//
// It provides a lightweight client for the UpdaterControl gRPC service with
// per-call timeouts, and detects the current system actor (hostname/username)
// recorded in attempt results.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
