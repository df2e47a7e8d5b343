package pipeline

import (
	"chroni/internal/matcher"
	"chroni/internal/model"
	"path"
	"path/filepath"
)

// Filter drops events below root that the excluder rules out.
func Filter(inCh <-chan model.FileEvent, root string, exclude *matcher.Excluder) <-chan model.FileEvent {
	outCh := make(chan model.FileEvent, cap(inCh))

	go func() {
		defer close(outCh)

		for event := range inCh {
			if shouldIgnore(event.Path, root, exclude) {
				continue
			}
			outCh <- event
		}
	}()

	return outCh
}

func shouldIgnore(name, root string, exclude *matcher.Excluder) bool {
	rel, err := filepath.Rel(root, name)
	if err != nil || rel == "." {
		return false
	}

	// an event for a/b/c is ignored when a, a/b or a/b/c is excluded
	leaf := filepath.ToSlash(rel)
	for p := leaf; p != "." && p != "/"; p = path.Dir(p) {
		if exclude.Excluded(p, p != leaf) {
			return true
		}
	}

	return false
}
