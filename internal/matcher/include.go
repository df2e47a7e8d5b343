package matcher

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Includer limits a walk to a set of subtrees of the mirror root. A nil
// Includer includes everything.
type Includer struct {
	roots []string
}

// NewIncluder accepts relative paths below the mirror root. It returns nil for
// an empty list or when one of the paths is the root itself.
func NewIncluder(paths []string) (*Includer, error) {
	inc := &Includer{}
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("empty include path")
		}

		clean := path.Clean(filepath.ToSlash(p))
		if path.IsAbs(clean) || filepath.IsAbs(p) {
			return nil, fmt.Errorf("include path %q must be relative to the source", p)
		}
		if clean == ".." || strings.HasPrefix(clean, "../") {
			return nil, fmt.Errorf("include path %q leaves the source", p)
		}
		if clean == "." {
			return nil, nil
		}

		inc.roots = append(inc.roots, clean)
	}

	if len(inc.roots) == 0 {
		return nil, nil
	}

	return inc, nil
}

// Included reports whether relPath lies in an included subtree. Directories
// above an included path are included too, so the walk can reach it.
func (i *Includer) Included(relPath string, isDir bool) bool {
	if i == nil {
		return true
	}

	relPath = filepath.ToSlash(relPath)
	if relPath == "." || relPath == "" {
		return true
	}

	for _, root := range i.roots {
		if relPath == root || strings.HasPrefix(relPath, root+"/") {
			return true
		}
		if isDir && strings.HasPrefix(root, relPath+"/") {
			return true
		}
	}

	return false
}

func (i *Includer) Roots() []string {
	if i == nil {
		return nil
	}

	return append([]string(nil), i.roots...)
}
