package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	tmpPrefix = ".chroni-"
	tmpSuffix = ".tmp"
)

// IsTemp reports whether name has the shape of an AtomicWrite temp file.
func IsTemp(name string) bool {
	return strings.HasPrefix(name, tmpPrefix) && strings.HasSuffix(name, tmpSuffix)
}

// AtomicWrite writes r to dst through a uniquely named temp file in the same
// directory and a rename, so a failed copy never leaves a truncated
// destination behind.
func AtomicWrite(fs afero.Fs, dst string, r io.Reader, perm os.FileMode) (int64, error) {
	dir := filepath.Dir(dst)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create parent dir: %w", err)
	}

	f, err := afero.TempFile(fs, dir, tmpPrefix+"*"+tmpSuffix)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()

	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		_ = fs.Remove(tmp)
		return 0, fmt.Errorf("failed to write: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = fs.Remove(tmp)
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := fs.Chmod(tmp, perm); err != nil {
		_ = fs.Remove(tmp)
		return 0, fmt.Errorf("failed to set mode: %w", err)
	}

	if err := fs.Rename(tmp, dst); err != nil {
		_ = fs.Remove(tmp)
		return 0, fmt.Errorf("failed to rename: %w", err)
	}

	return n, nil
}

// CopyFile copies src to dst and stamps dst with the source modification time.
func CopyFile(fs afero.Fs, src, dst string) (int64, error) {
	info, err := fs.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("failed to stat src: %w", err)
	}

	f, err := fs.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open src: %w", err)
	}

	defer func(f afero.File) {
		_ = f.Close()
	}(f)

	n, err := AtomicWrite(fs, dst, f, info.Mode().Perm())
	if err != nil {
		return 0, err
	}

	if err := fs.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return n, fmt.Errorf("failed to set mtime: %w", err)
	}

	return n, nil
}

// CopyLink recreates the symlink src at dst without following it.
func CopyLink(fs afero.Fs, src, dst string) error {
	reader, ok := fs.(afero.LinkReader)
	if !ok {
		return fmt.Errorf("filesystem cannot read links")
	}

	linker, ok := fs.(afero.Linker)
	if !ok {
		return fmt.Errorf("filesystem cannot create links")
	}

	target, err := reader.ReadlinkIfPossible(src)
	if err != nil {
		return fmt.Errorf("failed to read link: %w", err)
	}

	if err := RemoveIfExists(fs, dst); err != nil {
		return err
	}

	if err := linker.SymlinkIfPossible(target, dst); err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

func RemoveIfExists(fs afero.Fs, path string) error {
	if err := fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}

	return nil
}
