// Package helper finishes an update after the host process has exited.
//
// It runs detached from the host, from a copy of the binary installed in the
// temporary directory. It waits until the process table no longer shows the
// application, synchronizes the staged tree onto the installation, removes
// staging, relaunches the application, deletes its own files and records the
// outcome. Every step is written to the diagnostic trace.
package helper
