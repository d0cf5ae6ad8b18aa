package update

import "io/fs"

// Kind is the type of filesystem entry a plan step reproduces.
type Kind int

const (
	// KindDirectory creates the destination directory when it is absent.
	KindDirectory Kind = iota + 1
	// KindFile copies or atomically replaces a regular file.
	KindFile
	// KindSymlink recreates a symbolic link with a verbatim target.
	KindSymlink
)

// String returns the human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "Directory"
	case KindFile:
		return "File"
	case KindSymlink:
		return "Symlink"
	default:
		return "Unknown"
	}
}

// Entry is one step of a Plan.
type Entry struct {
	// RelPath is the slash-separated path relative to both roots.
	RelPath string
	// SourcePath is the absolute path inside the staging tree.
	SourcePath string
	// DestPath is the absolute path inside the destination tree.
	DestPath string
	// Kind tells how the entry is reproduced.
	Kind Kind
	// Mode holds the source permission bits for files and directories.
	Mode fs.FileMode
	// LinkTarget is the verbatim symlink target for KindSymlink.
	LinkTarget string
}

// Plan is the ordered list of operations needed to reproduce a source tree onto a destination.
// Directories always precede their contents.
type Plan struct {
	// SourceRoot is the staging tree root.
	SourceRoot string
	// DestRoot is the destination tree root.
	DestRoot string
	// Entries are the operations in application order.
	Entries []Entry
}

// Count returns how many entries of the given kind the plan holds.
func (p *Plan) Count(kind Kind) int {
	n := 0

	for i := range p.Entries {
		if p.Entries[i].Kind == kind {
			n++
		}
	}

	return n
}
