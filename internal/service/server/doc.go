// Package server runs the UpdaterControl gRPC API inside the application.
//
// It resolves the installation layout, answers version and path queries and
// turns a successful TriggerUpdateAndRelaunch into a graceful shutdown of the
// serve loop, after which the process exits so the helper can proceed.
package server
