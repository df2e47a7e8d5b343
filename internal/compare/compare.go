package compare

import (
	"bytes"
	"chroni/internal/model"
	"crypto/sha1"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

type Comparator struct {
	fs   afero.Fs
	mode model.OverwriteMode
}

func New(fs afero.Fs, mode model.OverwriteMode) *Comparator {
	return &Comparator{fs: fs, mode: mode}
}

func (c *Comparator) Mode() model.OverwriteMode {
	return c.mode
}

// Decide returns ActionCopy or ActionSkip for an existing source. A missing
// destination is always copied, including under ModeNever: creating the
// mirror is not an overwrite.
func (c *Comparator) Decide(src, dst string, srcMeta, dstMeta *model.Meta) (model.Action, model.Reason, error) {
	if dstMeta == nil {
		return model.ActionCopy, model.ReasonMissing, nil
	}

	if srcMeta.Kind == model.KindSymlink || dstMeta.Kind == model.KindSymlink {
		action, reason := c.decideLink(srcMeta, dstMeta)
		return action, reason, nil
	}

	switch c.mode {
	case model.ModeAlways:
		return model.ActionCopy, model.ReasonAlways, nil

	case model.ModeNever:
		return model.ActionSkip, model.ReasonNeverOverwrite, nil

	case model.ModeFastComp:
		if srcMeta.Size != dstMeta.Size {
			return model.ActionCopy, model.ReasonSizeDiffers, nil
		}
		return model.ActionSkip, model.ReasonUnchanged, nil

	case model.ModeDeepComp:
		if srcMeta.Size != dstMeta.Size {
			return model.ActionCopy, model.ReasonSizeDiffers, nil
		}

		same, err := c.sameContent(src, dst)
		if err != nil {
			return model.ActionSkip, model.ReasonError, err
		}
		if !same {
			return model.ActionCopy, model.ReasonContentDiffers, nil
		}
		return model.ActionSkip, model.ReasonUnchanged, nil

	default:
		return model.ActionSkip, model.ReasonError, fmt.Errorf("unknown overwrite mode: %s", c.mode)
	}
}

// Links are never followed: two links are equal when their targets are.
func (c *Comparator) decideLink(srcMeta, dstMeta *model.Meta) (model.Action, model.Reason) {
	switch {
	case linksEqual(srcMeta, dstMeta):
		return model.ActionSkip, model.ReasonUnchanged
	case c.mode == model.ModeNever:
		return model.ActionSkip, model.ReasonNeverOverwrite
	default:
		return model.ActionCopy, model.ReasonLinkChanged
	}
}

func linksEqual(a, b *model.Meta) bool {
	return a.Kind == model.KindSymlink && b.Kind == model.KindSymlink && a.LinkTarget == b.LinkTarget
}

func (c *Comparator) sameContent(src, dst string) (bool, error) {
	srcSum, err := Checksum(c.fs, src)
	if err != nil {
		return false, err
	}

	dstSum, err := Checksum(c.fs, dst)
	if err != nil {
		return false, err
	}

	return bytes.Equal(srcSum, dstSum), nil
}

// Checksum streams the file through SHA-1.
func Checksum(fs afero.Fs, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	defer func(f afero.File) {
		_ = f.Close()
	}(f)

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return h.Sum(nil), nil
}
