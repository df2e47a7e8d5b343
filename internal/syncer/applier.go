package syncer

import (
	"chroni/internal/model"
	"chroni/internal/util"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// Op is a staged decision with the absolute paths it acts on.
type Op struct {
	model.Decision
	Src     string
	Dst     string
	SrcMeta *model.Meta
	DstMeta *model.Meta

	// after is an op that must succeed before this one runs.
	after *Op
	size  int64
	err   error
}

type Applier interface {
	Apply(op *Op) error
}

type fsApplier struct {
	fs afero.Fs
}

func (a fsApplier) Apply(op *Op) error {
	switch op.Action {
	case model.ActionCreateDir:
		perm := os.FileMode(0755)
		if op.SrcMeta != nil && op.SrcMeta.Mode != 0 {
			perm = os.FileMode(op.SrcMeta.Mode)
		}
		if err := a.fs.MkdirAll(op.Dst, perm); err != nil {
			return fmt.Errorf("failed to create dir: %w", err)
		}
		return nil

	case model.ActionCopy:
		if op.SrcMeta.Kind == model.KindSymlink {
			return util.CopyLink(a.fs, op.Src, op.Dst)
		}
		n, err := util.CopyFile(a.fs, op.Src, op.Dst)
		op.size = n
		return err

	case model.ActionDelete:
		return util.RemoveIfExists(a.fs, op.Dst)

	default:
		return nil
	}
}

// dryRunApplier leaves the filesystem alone; the decision is only reported.
type dryRunApplier struct{}

func (dryRunApplier) Apply(op *Op) error {
	if op.Action == model.ActionCopy && op.SrcMeta != nil && op.SrcMeta.Kind == model.KindFile {
		op.size = op.SrcMeta.Size
	}

	return nil
}
