package syncer

import (
	"chroni/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func member(rel string, action model.Action, src, dst *time.Time) *Op {
	op := &Op{Decision: model.Decision{Action: action, RelPath: rel, Reason: model.ReasonMissing}}
	if src != nil {
		op.SrcMeta = &model.Meta{Kind: model.KindFile, ModTime: *src}
	}
	if dst != nil {
		op.DstMeta = &model.Meta{Kind: model.KindFile, ModTime: *dst}
	}
	return op
}

func TestRankModTime(t *testing.T) {
	early, late := base, base.Add(time.Hour)

	assert.Equal(t, late, rankModTime(member("a", model.ActionCopy, &late, nil)))
	assert.Equal(t, early, rankModTime(member("a", model.ActionSkip, nil, &early)))
	assert.Equal(t, late, rankModTime(member("a", model.ActionCopy, &late, &early)))
	// a kept destination copy still ranks by its source
	assert.Equal(t, late, rankModTime(member("a", model.ActionSkip, &late, &early)))
	assert.Equal(t, early, rankModTime(member("a", model.ActionSkip, &early, &late)))
}

func TestResolve(t *testing.T) {
	t1, t2, t3 := base, base.Add(time.Hour), base.Add(2*time.Hour)

	g := newRetentionGroup("logs", model.ModeFastComp)
	kept := member("logs/kept", model.ActionSkip, &t3, &t3)
	stale := member("logs/stale", model.ActionSkip, &t2, &t2)
	fresh := member("logs/fresh", model.ActionCopy, &t2, nil)
	orphan := member("logs/orphan", model.ActionSkip, nil, &t1)
	for _, op := range []*Op{fresh, kept, orphan, stale} {
		g.add(op)
	}

	winner := g.resolve()

	assert.Same(t, kept, winner)
	assert.Equal(t, model.ActionSkip, kept.Action)
	assert.Equal(t, model.ActionDelete, stale.Action)
	assert.Equal(t, model.ReasonStale, stale.Reason)
	assert.Nil(t, stale.after)
	assert.Equal(t, model.ActionSkip, fresh.Action)
	assert.Equal(t, model.ReasonSuperseded, fresh.Reason)
	assert.Equal(t, model.ActionDelete, orphan.Action)
}

func TestResolveRanksKeptCopyBySource(t *testing.T) {
	t1, t2, t3 := base, base.Add(time.Hour), base.Add(2*time.Hour)

	g := newRetentionGroup("logs", model.ModeFastComp)
	a := member("logs/a", model.ActionSkip, &t3, &t1)
	b := member("logs/b", model.ActionSkip, nil, &t2)
	g.add(a)
	g.add(b)

	assert.Same(t, a, g.resolve())
	assert.Equal(t, model.ActionCopy, a.Action)
	assert.Equal(t, model.ReasonMTimeDiffers, a.Reason)
	assert.Equal(t, model.ActionDelete, b.Action)
	assert.Same(t, a, b.after)
}

func TestResolveNeverKeepsStampedWinner(t *testing.T) {
	t1, t2, t3 := base, base.Add(time.Hour), base.Add(2*time.Hour)

	g := newRetentionGroup("logs", model.ModeNever)
	a := member("logs/a", model.ActionSkip, &t3, &t1)
	b := member("logs/b", model.ActionSkip, nil, &t2)
	g.add(a)
	g.add(b)

	assert.Same(t, a, g.resolve())
	assert.Equal(t, model.ActionSkip, a.Action)
	assert.Equal(t, model.ActionDelete, b.Action)
	assert.Nil(t, b.after)
}

func TestResolveCopiedWinnerGatesDeletes(t *testing.T) {
	t1, t2 := base, base.Add(time.Hour)

	g := newRetentionGroup("logs", model.ModeFastComp)
	fresh := member("logs/new", model.ActionCopy, &t2, nil)
	old := member("logs/old", model.ActionSkip, nil, &t1)
	g.add(fresh)
	g.add(old)

	assert.Same(t, fresh, g.resolve())
	assert.Equal(t, model.ActionDelete, old.Action)
	assert.Same(t, fresh, old.after)
}

func TestResolveTieAndEmpty(t *testing.T) {
	assert.Nil(t, newRetentionGroup("x", model.ModeFastComp).resolve())

	g := newRetentionGroup("x", model.ModeFastComp)
	b := member("x/b", model.ActionCopy, &base, nil)
	a := member("x/a", model.ActionCopy, &base, nil)
	g.add(b)
	g.add(a)

	assert.Same(t, a, g.resolve())
	assert.Equal(t, model.ReasonSuperseded, b.Reason)
}
