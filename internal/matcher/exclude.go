package matcher

import (
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"
)

// Excluder filters entries with gitignore-style patterns. A nil Excluder
// excludes nothing.
type Excluder struct {
	ig *ignore.GitIgnore
}

func NewExcluder(patterns []string) *Excluder {
	if len(patterns) == 0 {
		return nil
	}

	return &Excluder{ig: ignore.CompileIgnoreLines(patterns...)}
}

func (e *Excluder) Excluded(relPath string, isDir bool) bool {
	if e == nil {
		return false
	}

	relPath = filepath.ToSlash(relPath)
	if e.ig.MatchesPath(relPath) {
		return true
	}

	return isDir && e.ig.MatchesPath(relPath+"/")
}
