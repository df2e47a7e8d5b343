package syncer

import (
	"chroni/internal/model"
	"time"
)

// retentionGroup stages the file decisions of one only-newest directory so
// they can be rewritten together once every sibling is known.
type retentionGroup struct {
	dir       string
	overwrite bool
	members   []*Op
}

func newRetentionGroup(dir string, mode model.OverwriteMode) *retentionGroup {
	return &retentionGroup{dir: dir, overwrite: mode != model.ModeNever}
}

func (g *retentionGroup) add(op *Op) {
	g.members = append(g.members, op)
}

// rankModTime orders group members. A file present in the source always
// ranks by its source mtime, so the ranking does not move between runs.
func rankModTime(op *Op) time.Time {
	if op.SrcMeta != nil {
		return op.SrcMeta.ModTime
	}

	return op.DstMeta.ModTime
}

// resolve keeps the newest member and turns every other one into a delete
// (present at the destination) or a superseded skip (source only). Ties go to
// the smallest relative path. Deletes of a group whose winner is copied wait
// for that copy. It returns the winner, or nil for an empty group.
func (g *retentionGroup) resolve() *Op {
	var winner *Op
	var newest time.Time

	for _, op := range g.members {
		mtime := rankModTime(op)
		if winner == nil || mtime.After(newest) || (mtime.Equal(newest) && op.RelPath < winner.RelPath) {
			winner, newest = op, mtime
		}
	}
	if winner == nil {
		return nil
	}

	switch {
	case winner.SrcMeta == nil:
		winner.Decision = model.Decision{Action: model.ActionSkip, RelPath: winner.RelPath, Reason: model.ReasonNewest}
	case g.stamped(winner):
		winner.Decision = model.Decision{Action: model.ActionCopy, RelPath: winner.RelPath, Reason: model.ReasonMTimeDiffers}
	}

	for _, op := range g.members {
		switch {
		case op == winner:
		case op.DstMeta != nil:
			op.Decision = model.Decision{Action: model.ActionDelete, RelPath: op.RelPath, Reason: model.ReasonStale}
			if winner.Action == model.ActionCopy {
				op.after = winner
			}
		default:
			op.Decision = model.Decision{Action: model.ActionSkip, RelPath: op.RelPath, Reason: model.ReasonSuperseded}
		}
	}

	return winner
}

// stamped reports a kept winner whose destination copy carries another mtime
// than its source. Recopying it stamps the source mtime onto the destination.
func (g *retentionGroup) stamped(op *Op) bool {
	if !g.overwrite || op.Action != model.ActionSkip || op.DstMeta == nil {
		return false
	}
	if op.SrcMeta.Kind != model.KindFile || op.DstMeta.Kind != model.KindFile {
		return false
	}

	return !op.SrcMeta.ModTime.Truncate(time.Second).Equal(op.DstMeta.ModTime.Truncate(time.Second))
}
