// Package matcher selects directories for only-newest retention and filters
// excluded entries out of the walk.
package matcher

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher decides whether a directory is subject to only-newest retention.
//
// Patterns use the doublestar grammar: "*" and "?" stay within one path
// segment, "**" spans segments, "[...]" and "{a,b}" are supported. Matching is
// case-sensitive against slash-separated paths relative to the mirror root. The
// root itself is "." and only the literal pattern "." selects it. A pattern
// whose last segment is "*" also selects its parent directory, so "logs/*"
// applies to "logs".
type Matcher struct {
	patterns []string
}

func Compile(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		p = filepath.ToSlash(strings.TrimSpace(p))
		if p == "" {
			return nil, fmt.Errorf("empty only-newest pattern")
		}

		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("malformed glob pattern %q", p)
		}

		m.patterns = append(m.patterns, strings.TrimPrefix(p, "./"))
	}

	return m, nil
}

func (m *Matcher) Match(relDir string) bool {
	if m == nil {
		return false
	}

	relDir = filepath.ToSlash(relDir)
	if relDir == "" || relDir == "." {
		return slices.Contains(m.patterns, ".")
	}

	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, relDir); ok {
			return true
		}

		if parent, ok := strings.CutSuffix(p, "/*"); ok {
			if ok, _ := doublestar.Match(parent, relDir); ok {
				return true
			}
		}
	}

	return false
}

func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}

	return append([]string(nil), m.patterns...)
}
