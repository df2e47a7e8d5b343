// Package walker merges the source and destination trees into a depth-first
// sequence of directory levels.
package walker

import (
	"chroni/internal/matcher"
	"chroni/internal/model"
	"chroni/internal/util"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// Level is one directory of the merged tree with its children sorted by name.
type Level struct {
	Dir     model.TreeEntry
	Entries []model.TreeEntry
}

// Walker is a restartable, lazy walk driven by an explicit stack, so tree
// depth never grows the call stack. Levels come out in pre-order: a directory
// is returned before any of its subdirectories.
type Walker struct {
	fs      afero.Fs
	srcRoot string
	dstRoot string
	exclude *matcher.Excluder
	include *matcher.Includer

	started bool
	stack   []model.TreeEntry
}

// New walks srcRoot and dstRoot together. Entries outside include (when
// set) or matched by exclude are skipped on both sides.
func New(fs afero.Fs, srcRoot, dstRoot string, exclude *matcher.Excluder, include *matcher.Includer) *Walker {
	return &Walker{
		fs:      fs,
		srcRoot: srcRoot,
		dstRoot: dstRoot,
		exclude: exclude,
		include: include,
	}
}

func (w *Walker) Reset() {
	w.started = false
	w.stack = nil
}

// Next returns the next level, or io.EOF when the walk is complete. Errors are
// *model.TraversalError and end the walk.
func (w *Walker) Next() (*Level, error) {
	if !w.started {
		root, err := w.root()
		if err != nil {
			return nil, err
		}

		w.started = true
		w.stack = append(w.stack, root)
	}

	if len(w.stack) == 0 {
		return nil, io.EOF
	}

	dir := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]

	entries, err := w.merge(dir)
	if err != nil {
		w.stack = nil
		return nil, err
	}

	// reverse push keeps subdirectories popping in name order
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].IsDir() {
			w.stack = append(w.stack, entries[i])
		}
	}

	return &Level{Dir: dir, Entries: entries}, nil
}

// Entries flattens the walk into single tree entries, directories first.
func (w *Walker) Entries() iter.Seq2[model.TreeEntry, error] {
	return func(yield func(model.TreeEntry, error) bool) {
		w.Reset()
		for {
			level, err := w.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(model.TreeEntry{}, err)
				return
			}

			for _, e := range level.Entries {
				if !yield(e, nil) {
					return
				}
			}
		}
	}
}

func (w *Walker) root() (model.TreeEntry, error) {
	root := model.TreeEntry{RelPath: ".", Name: "."}

	info, err := w.fs.Stat(w.srcRoot)
	if err != nil {
		return root, &model.TraversalError{Path: w.srcRoot, Err: err}
	}
	if !info.IsDir() {
		return root, &model.TraversalError{Path: w.srcRoot, Err: fmt.Errorf("not a directory")}
	}
	root.Src = toMeta(info, "")

	info, err = w.fs.Stat(w.dstRoot)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return root, &model.TraversalError{Path: w.dstRoot, Err: err}
	case !info.IsDir():
		return root, &model.TraversalError{Path: w.dstRoot, Err: fmt.Errorf("not a directory")}
	default:
		root.Dst = toMeta(info, "")
	}

	return root, nil
}

func (w *Walker) merge(dir model.TreeEntry) ([]model.TreeEntry, error) {
	var src, dst map[string]*model.Meta
	var err error

	if dir.Src.IsDir() {
		if src, err = w.list(w.srcRoot, dir.RelPath, false); err != nil {
			return nil, err
		}
	}

	if dir.Dst.IsDir() {
		if dst, err = w.list(w.dstRoot, dir.RelPath, true); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(src)+len(dst))
	for name := range src {
		names = append(names, name)
	}
	for name := range dst {
		if _, ok := src[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	entries := make([]model.TreeEntry, 0, len(names))
	for _, name := range names {
		e := model.TreeEntry{
			RelPath: path.Join(dir.RelPath, name),
			Name:    name,
			Src:     src[name],
			Dst:     dst[name],
		}

		if !w.include.Included(e.RelPath, e.IsDir()) || w.exclude.Excluded(e.RelPath, e.IsDir()) {
			continue
		}

		// leftovers of an interrupted copy
		if e.DstOnly() && e.Dst.Kind == model.KindFile && util.IsTemp(name) {
			continue
		}

		entries = append(entries, e)
	}

	return entries, nil
}

// list reads one side of a level. A missing destination directory is empty;
// every other read failure is a traversal error.
func (w *Walker) list(root, rel string, missingOK bool) (map[string]*model.Meta, error) {
	abs := filepath.Join(root, filepath.FromSlash(rel))

	infos, err := afero.ReadDir(w.fs, abs)
	if err != nil {
		if missingOK && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &model.TraversalError{Path: abs, Err: err}
	}

	out := make(map[string]*model.Meta, len(infos))
	for _, info := range infos {
		var target string
		if info.Mode()&os.ModeSymlink != 0 {
			// an unreadable link keeps an empty target and fails later, per entry
			target, _ = w.readLink(filepath.Join(abs, info.Name()))
		}

		if meta := toMeta(info, target); meta != nil {
			out[info.Name()] = meta
		}
	}

	return out, nil
}

func (w *Walker) readLink(name string) (string, error) {
	reader, ok := w.fs.(afero.LinkReader)
	if !ok {
		return "", fmt.Errorf("filesystem cannot read links")
	}

	return reader.ReadlinkIfPossible(name)
}

// toMeta returns nil for devices, sockets and pipes, which are not mirrored.
func toMeta(info os.FileInfo, linkTarget string) *model.Meta {
	meta := &model.Meta{
		Size:    info.Size(),
		Mode:    uint32(info.Mode().Perm()),
		ModTime: info.ModTime(),
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		meta.Kind = model.KindSymlink
		meta.LinkTarget = linkTarget
	case info.IsDir():
		meta.Kind = model.KindDir
	case info.Mode().IsRegular():
		meta.Kind = model.KindFile
	default:
		return nil
	}

	return meta
}
