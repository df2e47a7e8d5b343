package model

import "time"

type Kind string

const (
	KindFile    Kind = "FILE"
	KindDir     Kind = "DIR"
	KindSymlink Kind = "SYMLINK"
)

type Meta struct {
	Kind       Kind
	Size       int64
	Mode       uint32
	ModTime    time.Time
	LinkTarget string
}

func (m *Meta) IsDir() bool {
	return m != nil && m.Kind == KindDir
}

// TreeEntry is one name of the merged source/destination listing.
// At most one of Src and Dst is nil.
type TreeEntry struct {
	RelPath string
	Name    string
	Src     *Meta
	Dst     *Meta
}

func (e TreeEntry) SrcOnly() bool {
	return e.Src != nil && e.Dst == nil
}

func (e TreeEntry) DstOnly() bool {
	return e.Src == nil && e.Dst != nil
}

// Conflict reports a name that is a directory on one side and not on the other.
func (e TreeEntry) Conflict() bool {
	return e.Src != nil && e.Dst != nil && e.Src.IsDir() != e.Dst.IsDir()
}

func (e TreeEntry) IsDir() bool {
	if e.Conflict() {
		return false
	}

	return e.Src.IsDir() || e.Dst.IsDir()
}
