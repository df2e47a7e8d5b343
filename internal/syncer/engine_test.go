package syncer

import (
	"chroni/internal/model"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func roots(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(src, 0755))
	require.NoError(t, os.MkdirAll(dst, 0755))
	return src, dst
}

func options(src, dst string, mode model.OverwriteMode) model.Options {
	return model.Options{SrcRoot: src, DstRoot: dst, Mode: mode, Workers: 2}
}

func run(t *testing.T, opts model.Options) *model.Report {
	t.Helper()
	e, err := New(opts)
	require.NoError(t, err)
	report, err := e.Run(context.Background())
	require.NoError(t, err)
	return report
}

// snapshot lists every path under root with its content (or link target).
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		rel, _ := filepath.Rel(root, path)
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, _ := os.Readlink(path)
			out[rel] = "-> " + target
		case d.IsDir():
			out[rel] = "/"
		default:
			out[rel] = readFile(t, path)
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func find(r *model.Report, rel string) (model.Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.RelPath == rel {
			return o, true
		}
	}
	return model.Outcome{}, false
}

func TestFastCompCopiesMissingThenIsIdempotent(t *testing.T) {
	src, dst := roots(t)
	writeFile(t, filepath.Join(src, "a.txt"), strings.Repeat("x", 100), base)

	first := run(t, options(src, dst, model.ModeFastComp))
	assert.Equal(t, []model.Decision{{Action: model.ActionCopy, RelPath: "a.txt", Reason: model.ReasonMissing}}, first.Decisions())
	assert.EqualValues(t, 100, first.Bytes)
	assert.Equal(t, strings.Repeat("x", 100), readFile(t, filepath.Join(dst, "a.txt")))

	second := run(t, options(src, dst, model.ModeFastComp))
	assert.Zero(t, second.Counts[model.ActionCopy])
	assert.Equal(t, 1, second.Counts[model.ActionSkip])
	assert.Zero(t, second.Failed)
}

func TestCreatesNestedDirectories(t *testing.T) {
	src, dst := roots(t)
	writeFile(t, filepath.Join(src, "a", "b", "c.txt"), "deep", base)

	report := run(t, options(src, dst, model.ModeFastComp))

	assert.Equal(t, []model.Decision{
		{Action: model.ActionCreateDir, RelPath: "a", Reason: model.ReasonMissing},
		{Action: model.ActionCreateDir, RelPath: "a/b", Reason: model.ReasonMissing},
		{Action: model.ActionCopy, RelPath: "a/b/c.txt", Reason: model.ReasonMissing},
	}, report.Decisions())
	assert.Equal(t, "deep", readFile(t, filepath.Join(dst, "a", "b", "c.txt")))
}

func TestCopyPreservesSourceModTime(t *testing.T) {
	src, dst := roots(t)
	writeFile(t, filepath.Join(src, "a.txt"), "content", base)

	run(t, options(src, dst, model.ModeAlways))

	info, err := os.Stat(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(base))
}

func TestAlwaysOverwrites(t *testing.T) {
	src, dst := roots(t)
	writeFile(t, filepath.Join(src, "a.txt"), "same", base)
	writeFile(t, filepath.Join(dst, "a.txt"), "same", base)

	report := run(t, options(src, dst, model.ModeAlways))
	o, ok := find(report, "a.txt")
	require.True(t, ok)
	assert.Equal(t, model.ActionCopy, o.Action)
	assert.Equal(t, model.ReasonAlways, o.Reason)
}

func TestNeverKeepsExistingButFillsMissing(t *testing.T) {
	src, dst := roots(t)
	writeFile(t, filepath.Join(src, "kept.txt"), "new and longer", base)
	writeFile(t, filepath.Join(dst, "kept.txt"), "old", base)
	writeFile(t, filepath.Join(src, "fresh.txt"), "fresh", base)

	report := run(t, options(src, dst, model.ModeNever))

	assert.Equal(t, "old", readFile(t, filepath.Join(dst, "kept.txt")))
	assert.Equal(t, "fresh", readFile(t, filepath.Join(dst, "fresh.txt")))

	o, _ := find(report, "kept.txt")
	assert.Equal(t, model.ReasonNeverOverwrite, o.Reason)
	o, _ = find(report, "fresh.txt")
	assert.Equal(t, model.ActionCopy, o.Action)
}

func TestDeepCompDetectsEqualSizeChanges(t *testing.T) {
	src, dst := roots(t)
	writeFile(t, filepath.Join(src, "changed.txt"), "abcd", base)
	writeFile(t, filepath.Join(dst, "changed.txt"), "abce", base)
	writeFile(t, filepath.Join(src, "same.txt"), "1234", base)
	writeFile(t, filepath.Join(dst, "same.txt"), "1234", base)

	report := run(t, options(src, dst, model.ModeDeepComp))

	o, _ := find(report, "changed.txt")
	assert.Equal(t, model.ActionCopy, o.Action)
	assert.Equal(t, model.ReasonContentDiffers, o.Reason)
	assert.Equal(t, "abcd", readFile(t, filepath.Join(dst, "changed.txt")))

	o, _ = find(report, "same.txt")
	assert.Equal(t, model.ActionSkip, o.Action)

	// fast-comp would have missed it
	writeFile(t, filepath.Join(dst, "changed.txt"), "zzzz", base)
	report = run(t, options(src, dst, model.ModeFastComp))
	o, _ = find(report, "changed.txt")
	assert.Equal(t, model.ActionSkip, o.Action)
}

func TestDestinationOnlyContentIsLeftAlone(t *testing.T) {
	src, dst := roots(t)
	writeFile(t, filepath.Join(src, "a.txt"), "a", base)
	writeFile(t, filepath.Join(dst, "extra.txt"), "extra", base)
	writeFile(t, filepath.Join(dst, "olddir", "f.txt"), "f", base)

	report := run(t, options(src, dst, model.ModeFastComp))

	assert.Equal(t, "extra", readFile(t, filepath.Join(dst, "extra.txt")))
	assert.Equal(t, "f", readFile(t, filepath.Join(dst, "olddir", "f.txt")))
	_, ok := find(report, "extra.txt")
	assert.False(t, ok)
	_, ok = find(report, "olddir")
	assert.False(t, ok)
}

func TestOnlyNewestPrunesStaleDestinationFiles(t *testing.T) {
	src, dst := roots(t)
	require.NoError(t, os.MkdirAll(filepath.Join(src, "logs"), 0755))
	writeFile(t, filepath.Join(dst, "logs", "2023.log"), "old", base)
	writeFile(t, filepath.Join(dst, "logs", "2024.log"), "new", base.Add(time.Hour))

	opts := options(src, dst, model.ModeFastComp)
	opts.OnlyNewest = []string{"logs/*"}
	report := run(t, opts)

	entries, err := os.ReadDir(filepath.Join(dst, "logs"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2024.log", entries[0].Name())

	assert.Equal(t, []model.Decision{
		{Action: model.ActionDelete, RelPath: "logs/2023.log", Reason: model.ReasonStale},
		{Action: model.ActionSkip, RelPath: "logs/2024.log", Reason: model.ReasonNewest},
	}, report.Decisions())
}

func TestOnlyNewestKeepsNewestAcrossBothSides(t *testing.T) {
	src, dst := roots(t)
	writeFile(t, filepath.Join(src, "backups", "a.tar"), "a", base)
	writeFile(t, filepath.Join(src, "backups", "c.tar"), "c", base.Add(3*time.Hour))
	writeFile(t, filepath.Join(dst, "backups", "b.tar"), "b", base.Add(2*time.Hour))
	writeFile(t, filepath.Join(src, "other", "x.txt"), "x", base)
	writeFile(t, filepath.Join(src, "other", "y.txt"), "y", base)

	opts := options(src, dst, model.ModeFastComp)
	opts.OnlyNewest = []string{"backups"}
	report := run(t, opts)

	entries, err := os.ReadDir(filepath.Join(dst, "backups"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c.tar", entries[0].Name())

	o, _ := find(report, "backups/a.tar")
	assert.Equal(t, model.ReasonSuperseded, o.Reason)
	o, _ = find(report, "backups/b.tar")
	assert.Equal(t, model.ActionDelete, o.Action)

	// directories outside the pattern are mirrored in full
	assert.Len(t, snapshot(t, filepath.Join(dst, "other")), 3)

	second := run(t, opts)
	assert.Zero(t, second.Changed())
}

func TestOnlyNewestTieBreaksOnPath(t *testing.T) {
	src, dst := roots(t)
	writeFile(t, filepath.Join(src, "snap", "b"), "b", base)
	writeFile(t, filepath.Join(src, "snap", "a"), "a", base)

	opts := options(src, dst, model.ModeFastComp)
	opts.OnlyNewest = []string{"snap"}
	run(t, opts)

	assert.Equal(t, map[string]string{".": "/", "a": "a"}, snapshot(t, filepath.Join(dst, "snap")))
}

func TestOnlyNewestRetentionIsStableAcrossRuns(t *testing.T) {
	src, dst := roots(t)
	writeFile(t, filepath.Join(src, "logs", "a.log"), "new!", base.Add(3*time.Hour))
	writeFile(t, filepath.Join(dst, "logs", "a.log"), "old!", base.Add(time.Hour))
	writeFile(t, filepath.Join(dst, "logs", "b.log"), "bbbb", base.Add(2*time.Hour))

	opts := options(src, dst, model.ModeFastComp)
	opts.OnlyNewest = []string{"logs/*"}

	first := run(t, opts)
	assert.Equal(t, []model.Decision{
		{Action: model.ActionCopy, RelPath: "logs/a.log", Reason: model.ReasonMTimeDiffers},
		{Action: model.ActionDelete, RelPath: "logs/b.log", Reason: model.ReasonStale},
	}, first.Decisions())
	assert.Equal(t, map[string]string{".": "/", "a.log": "new!"}, snapshot(t, filepath.Join(dst, "logs")))

	second := run(t, opts)
	assert.Zero(t, second.Changed())
	assert.Equal(t, []model.Decision{
		{Action: model.ActionSkip, RelPath: "logs/a.log", Reason: model.ReasonUnchanged},
	}, second.Decisions())
}

func TestOnlyNewestNeverModeIsStableAcrossRuns(t *testing.T) {
	src, dst := roots(t)
	writeFile(t, filepath.Join(src, "logs", "a.log"), "new!", base.Add(3*time.Hour))
	writeFile(t, filepath.Join(dst, "logs", "a.log"), "old!", base.Add(time.Hour))
	writeFile(t, filepath.Join(dst, "logs", "b.log"), "bbbb", base.Add(2*time.Hour))

	opts := options(src, dst, model.ModeNever)
	opts.OnlyNewest = []string{"logs/*"}

	run(t, opts)
	assert.Equal(t, map[string]string{".": "/", "a.log": "old!"}, snapshot(t, filepath.Join(dst, "logs")))

	second := run(t, opts)
	assert.Zero(t, second.Changed())
}

type failingApplier struct {
	next Applier
	path string
}

func (a failingApplier) Apply(op *Op) error {
	if op.Action == model.ActionCopy && op.RelPath == a.path {
		return errors.New("disk full")
	}
	return a.next.Apply(op)
}

func TestOnlyNewestKeepsStaleFilesWhenWinnerCopyFails(t *testing.T) {
	src, dst := roots(t)
	writeFile(t, filepath.Join(src, "logs", "new.log"), "new", base.Add(2*time.Hour))
	writeFile(t, filepath.Join(dst, "logs", "old.log"), "old", base)

	opts := options(src, dst, model.ModeFastComp)
	opts.OnlyNewest = []string{"logs/*"}
	e, err := New(opts)
	require.NoError(t, err)
	e.applier = failingApplier{next: e.applier, path: "logs/new.log"}

	report, err := e.Run(context.Background())
	require.NoError(t, err)

	o, _ := find(report, "logs/new.log")
	assert.Equal(t, model.ActionCopy, o.Action)
	assert.Error(t, o.Err)

	o, _ = find(report, "logs/old.log")
	assert.Equal(t, model.ActionSkip, o.Action)
	assert.Equal(t, model.ReasonError, o.Reason)
	assert.Error(t, o.Err)

	assert.Equal(t, "old", readFile(t, filepath.Join(dst, "logs", "old.log")))
	assert.Equal(t, 2, report.Failed)
	assert.Zero(t, report.Counts[model.ActionDelete])
}

func TestOnlyNewestSkipsRootForTopLevelStar(t *testing.T) {
	src, dst := roots(t)
	writeFile(t, filepath.Join(src, "a.txt"), "a", base)
	writeFile(t, filepath.Join(src, "b.txt"), "b", base.Add(time.Hour))
	writeFile(t, filepath.Join(src, "top", "x.log"), "x", base)
	writeFile(t, filepath.Join(src, "top", "y.log"), "y", base.Add(time.Hour))

	opts := options(src, dst, model.ModeFastComp)
	opts.OnlyNewest = []string{"*"}
	run(t, opts)

	assert.Equal(t, "a", readFile(t, filepath.Join(dst, "a.txt")))
	assert.Equal(t, "b", readFile(t, filepath.Join(dst, "b.txt")))
	assert.Equal(t, map[string]string{".": "/", "y.log": "y"}, snapshot(t, filepath.Join(dst, "top")))
}

func TestDryRunMatchesRealRunWithoutTouchingDestination(t *testing.T) {
	setup := func() (string, string) {
		src, dst := roots(t)
		writeFile(t, filepath.Join(src, "a.txt"), "a", base)
		writeFile(t, filepath.Join(src, "dir", "b.txt"), "bbb", base)
		writeFile(t, filepath.Join(dst, "dir", "b.txt"), "b", base)
		writeFile(t, filepath.Join(src, "logs", "new.log"), "new", base.Add(time.Hour))
		writeFile(t, filepath.Join(dst, "logs", "old.log"), "old", base)
		return src, dst
	}

	src, dst := setup()
	before := snapshot(t, dst)
	opts := options(src, dst, model.ModeFastComp)
	opts.OnlyNewest = []string{"logs"}
	opts.DryRun = true
	dry := run(t, opts)
	assert.Equal(t, before, snapshot(t, dst))
	assert.True(t, dry.DryRun)

	src, dst = setup()
	opts.SrcRoot, opts.DstRoot, opts.DryRun = src, dst, false
	applied := run(t, opts)

	assert.Equal(t, applied.Decisions(), dry.Decisions())
	assert.Equal(t, applied.Counts, dry.Counts)
	assert.Equal(t, applied.Bytes, dry.Bytes)
}

func TestDryRunDoesNotCreateDestinationRoot(t *testing.T) {
	src, _ := roots(t)
	dst := filepath.Join(t.TempDir(), "not-yet")
	writeFile(t, filepath.Join(src, "a", "b.txt"), "b", base)

	opts := options(src, dst, model.ModeFastComp)
	opts.DryRun = true
	report := run(t, opts)

	assert.Len(t, report.Outcomes, 2)
	_, err := os.Stat(dst)
	assert.True(t, os.IsNotExist(err))
}

func TestDeterministicDecisionOrder(t *testing.T) {
	src, dst := roots(t)
	for _, name := range []string{"z.txt", "m/1.txt", "m/2.txt", "a/q.txt", "b.txt", "a/b/c.txt"} {
		writeFile(t, filepath.Join(src, name), name, base)
	}

	opts := options(src, dst, model.ModeFastComp)
	opts.DryRun = true
	first := run(t, opts).Decisions()
	second := run(t, opts).Decisions()
	assert.Equal(t, first, second)

	var paths []string
	for _, d := range first {
		paths = append(paths, d.RelPath)
	}
	assert.Equal(t, []string{"a", "b.txt", "m", "z.txt", "a/b", "a/q.txt", "a/b/c.txt", "m/1.txt", "m/2.txt"}, paths)
}

func TestEntryFailuresAreIsolated(t *testing.T) {
	src, dst := roots(t)
	writeFile(t, filepath.Join(src, "clash", "inner.txt"), "x", base)
	writeFile(t, filepath.Join(dst, "clash"), "a file", base)
	writeFile(t, filepath.Join(src, "ok.txt"), "ok", base)

	var observed []model.Outcome
	e, err := New(options(src, dst, model.ModeFastComp), WithObserver(func(o model.Outcome) {
		observed = append(observed, o)
	}))
	require.NoError(t, err)

	report, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	o, _ := find(report, "clash")
	assert.Equal(t, model.ReasonKindConflict, o.Reason)
	assert.Error(t, o.Err)
	assert.Equal(t, "ok", readFile(t, filepath.Join(dst, "ok.txt")))
	assert.Len(t, observed, len(report.Outcomes))
}

func TestExcludedEntriesAreUntouched(t *testing.T) {
	src, dst := roots(t)
	writeFile(t, filepath.Join(src, "keep.txt"), "k", base)
	writeFile(t, filepath.Join(src, "cache", "blob"), "b", base)
	writeFile(t, filepath.Join(src, "x.tmp"), "t", base)

	opts := options(src, dst, model.ModeFastComp)
	opts.Exclude = []string{"cache/", "*.tmp"}
	run(t, opts)

	keys := make([]string, 0)
	for k := range snapshot(t, dst) {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{".", "keep.txt"}, keys)
}

func TestSymlinksAreRecreated(t *testing.T) {
	src, dst := roots(t)
	writeFile(t, filepath.Join(src, "target.txt"), "t", base)
	require.NoError(t, os.Symlink("target.txt", filepath.Join(src, "link")))
	require.NoError(t, os.Symlink("..", filepath.Join(src, "up")))

	report := run(t, options(src, dst, model.ModeFastComp))
	assert.Zero(t, report.Failed)

	got := snapshot(t, dst)
	assert.Equal(t, "-> target.txt", got["link"])
	assert.Equal(t, "-> ..", got["up"])

	second := run(t, options(src, dst, model.ModeFastComp))
	assert.Zero(t, second.Changed())
}

func TestFatalWhenSourceMissing(t *testing.T) {
	dir := t.TempDir()
	e, err := New(options(filepath.Join(dir, "nope"), filepath.Join(dir, "dst"), model.ModeFastComp))
	require.NoError(t, err)

	_, err = e.Run(context.Background())
	var terr *model.TraversalError
	require.ErrorAs(t, err, &terr)

	_, statErr := os.Stat(filepath.Join(dir, "dst"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFatalWhenDestinationIsFile(t *testing.T) {
	src, _ := roots(t)
	dst := filepath.Join(t.TempDir(), "file")
	writeFile(t, dst, "x", base)

	e, err := New(options(src, dst, model.ModeFastComp))
	require.NoError(t, err)
	_, err = e.Run(context.Background())

	var terr *model.TraversalError
	assert.ErrorAs(t, err, &terr)
}

func TestCancelledContext(t *testing.T) {
	src, dst := roots(t)
	writeFile(t, filepath.Join(src, "a.txt"), "a", base)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, err := New(options(src, dst, model.ModeFastComp))
	require.NoError(t, err)
	_, err = e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(model.Options{Mode: "sometimes"})
	assert.Error(t, err)

	_, err = New(model.Options{Mode: model.ModeNever, OnlyNewest: []string{"[oops"}})
	assert.Error(t, err)

	_, err = New(model.Options{Mode: model.ModeNever, Include: []string{"../outside"}})
	assert.Error(t, err)
}

func TestIncludeLimitsMirrorToListedPaths(t *testing.T) {
	src, dst := roots(t)
	writeFile(t, filepath.Join(src, "docs", "a.md"), "a", base)
	writeFile(t, filepath.Join(src, "conf", "app", "x.yaml"), "x", base)
	writeFile(t, filepath.Join(src, "conf", "skip.yaml"), "skip", base)
	writeFile(t, filepath.Join(src, "root.txt"), "root", base)
	writeFile(t, filepath.Join(dst, "keep.txt"), "keep", base)

	opts := options(src, dst, model.ModeFastComp)
	opts.Include = []string{"docs", "conf/app"}
	report := run(t, opts)

	assert.Equal(t, map[string]string{
		".":               "/",
		"keep.txt":        "keep",
		"docs":            "/",
		"docs/a.md":       "a",
		"conf":            "/",
		"conf/app":        "/",
		"conf/app/x.yaml": "x",
	}, snapshot(t, dst))
	_, ok := find(report, "root.txt")
	assert.False(t, ok)

	second := run(t, opts)
	assert.Zero(t, second.Changed())
}
