// Package process watches the process table and starts detached children.
//
// The Waiter is how the relaunch helper learns that the old application has
// really exited; the DetachedLauncher is how both the helper and the
// relaunched application get spawned so they outlive whoever started them.
package process
