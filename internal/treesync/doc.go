// Package treesync reproduces a staged update tree onto a live installation.
//
// Directories are created when missing, regular files are replaced atomically
// through a flushed temporary copy renamed over the destination, and symbolic
// links are recreated with their targets copied verbatim. Destination entries
// that the staged tree does not mention are never touched. The first failure
// aborts the run; there is no rollback.
package treesync
