package syncer

import (
	"chroni/internal/compare"
	"chroni/internal/logger"
	"chroni/internal/matcher"
	"chroni/internal/model"
	"chroni/internal/walker"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

// Engine runs one mirroring pass from Options.SrcRoot into Options.DstRoot.
type Engine struct {
	opts     model.Options
	fs       afero.Fs
	cmp      *compare.Comparator
	newest   *matcher.Matcher
	exclude  *matcher.Excluder
	include  *matcher.Includer
	applier  Applier
	observer func(model.Outcome)
}

type Option func(*Engine)

func WithFs(fs afero.Fs) Option {
	return func(e *Engine) {
		e.fs = fs
	}
}

// WithObserver registers a callback receiving every outcome in decision order.
func WithObserver(fn func(model.Outcome)) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

func New(opts model.Options, options ...Option) (*Engine, error) {
	if _, err := model.ParseOverwriteMode(string(opts.Mode)); err != nil {
		return nil, err
	}

	newest, err := matcher.Compile(opts.OnlyNewest)
	if err != nil {
		return nil, err
	}

	include, err := matcher.NewIncluder(opts.Include)
	if err != nil {
		return nil, err
	}

	if opts.Workers < 1 {
		opts.Workers = defaultWorkers
	}

	e := &Engine{
		opts:    opts,
		fs:      afero.NewOsFs(),
		newest:  newest,
		exclude: matcher.NewExcluder(opts.Exclude),
		include: include,
	}
	for _, o := range options {
		o(e)
	}

	e.cmp = compare.New(e.fs, opts.Mode)
	if opts.DryRun {
		e.applier = dryRunApplier{}
	} else {
		e.applier = fsApplier{fs: e.fs}
	}

	return e, nil
}

// Run walks both trees and applies (or in a dry run only reports) every
// decision. Entry failures are recorded in the report; the returned error is
// reserved for traversal failures and cancellation.
func (e *Engine) Run(ctx context.Context) (*model.Report, error) {
	report := model.NewReport(e.opts.DryRun)

	if err := e.prepareRoots(); err != nil {
		return report, err
	}

	logger.Log.Info("mirror started",
		zap.String("src", e.opts.SrcRoot),
		zap.String("dst", e.opts.DstRoot),
		zap.String("mode", string(e.opts.Mode)),
		zap.Bool("dry_run", e.opts.DryRun))

	w := walker.New(e.fs, e.opts.SrcRoot, e.opts.DstRoot, e.exclude, e.include)
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		level, err := w.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Log.Error("traversal failed", zap.Error(err))
			return report, err
		}

		ops := e.plan(level)
		e.apply(ops)

		for _, op := range ops {
			e.record(report, op)
		}
	}

	report.Finish()
	logger.Log.Info("mirror finished",
		zap.Int("changed", report.Changed()),
		zap.Int("failed", report.Failed),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)))

	return report, nil
}

// prepareRoots fails before any operation when the source cannot be read or
// the destination cannot be written.
func (e *Engine) prepareRoots() error {
	info, err := e.fs.Stat(e.opts.SrcRoot)
	if err != nil {
		return &model.TraversalError{Path: e.opts.SrcRoot, Err: err}
	}
	if !info.IsDir() {
		return &model.TraversalError{Path: e.opts.SrcRoot, Err: fmt.Errorf("not a directory")}
	}

	info, err = e.fs.Stat(e.opts.DstRoot)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if e.opts.DryRun {
			return nil
		}
		if err := e.fs.MkdirAll(e.opts.DstRoot, 0755); err != nil {
			return &model.TraversalError{Path: e.opts.DstRoot, Err: err}
		}
	case err != nil:
		return &model.TraversalError{Path: e.opts.DstRoot, Err: err}
	case !info.IsDir():
		return &model.TraversalError{Path: e.opts.DstRoot, Err: fmt.Errorf("not a directory")}
	}

	if e.opts.DryRun {
		return nil
	}

	probe, err := afero.TempFile(e.fs, e.opts.DstRoot, ".chroni-probe-*")
	if err != nil {
		return &model.TraversalError{Path: e.opts.DstRoot, Err: fmt.Errorf("destination not writable: %w", err)}
	}
	_ = probe.Close()
	_ = e.fs.Remove(probe.Name())

	return nil
}

// plan turns one level into staged operations in name order. Entries that
// need no action (destination-only content outside retention) produce none.
func (e *Engine) plan(level *walker.Level) []*Op {
	var group *retentionGroup
	if e.newest.Match(level.Dir.RelPath) {
		group = newRetentionGroup(level.Dir.RelPath, e.opts.Mode)
	}

	ops := make([]*Op, 0, len(level.Entries))
	for _, entry := range level.Entries {
		op := &Op{
			Decision: model.Decision{RelPath: entry.RelPath},
			Src:      filepath.Join(e.opts.SrcRoot, filepath.FromSlash(entry.RelPath)),
			Dst:      filepath.Join(e.opts.DstRoot, filepath.FromSlash(entry.RelPath)),
			SrcMeta:  entry.Src,
			DstMeta:  entry.Dst,
		}

		switch {
		case entry.Conflict():
			op.Action, op.Reason = model.ActionSkip, model.ReasonKindConflict
			op.err = fmt.Errorf("%s is a directory on one side only", entry.RelPath)

		case entry.IsDir():
			if !entry.SrcOnly() {
				continue
			}
			op.Action, op.Reason = model.ActionCreateDir, model.ReasonMissing

		case entry.DstOnly():
			if group == nil {
				continue
			}
			op.Action, op.Reason = model.ActionSkip, model.ReasonNewest

		default:
			op.Action, op.Reason, op.err = e.cmp.Decide(op.Src, op.Dst, entry.Src, entry.Dst)
		}

		if group != nil && op.err == nil && op.Action != model.ActionCreateDir {
			group.add(op)
		}

		ops = append(ops, op)
	}

	if group != nil {
		if winner := group.resolve(); winner != nil {
			logger.Log.Debug("only-newest retention",
				zap.String("dir", level.Dir.RelPath),
				zap.String("keep", winner.RelPath),
				zap.Int("candidates", len(group.members)))
		}
	}

	return ops
}

// apply runs one level as a batch: directories first and in order, then the
// file operations concurrently. Deletes that wait on a retention winner's copy
// run last and only when that copy succeeded. The batch finishes before the
// walk moves on, so every directory exists before anything is copied into it.
func (e *Engine) apply(ops []*Op) {
	for _, op := range ops {
		if op.err == nil && op.Action == model.ActionCreateDir {
			op.err = e.applier.Apply(op)
		}
	}

	var waiting []*Op
	g := new(errgroup.Group)
	g.SetLimit(e.opts.Workers)

	for _, op := range ops {
		if op.err != nil || (op.Action != model.ActionCopy && op.Action != model.ActionDelete) {
			continue
		}
		if op.after != nil {
			waiting = append(waiting, op)
			continue
		}

		g.Go(func() error {
			op.err = e.applier.Apply(op)
			return nil
		})
	}

	_ = g.Wait()

	if len(waiting) == 0 {
		return
	}

	g = new(errgroup.Group)
	g.SetLimit(e.opts.Workers)

	for _, op := range waiting {
		if op.after.err != nil {
			op.Action, op.Reason = model.ActionSkip, model.ReasonError
			op.err = fmt.Errorf("kept because %s was not copied: %w", op.after.RelPath, op.after.err)
			continue
		}

		g.Go(func() error {
			op.err = e.applier.Apply(op)
			return nil
		})
	}

	_ = g.Wait()
}

func (e *Engine) record(report *model.Report, op *Op) {
	outcome := model.Outcome{Decision: op.Decision, Size: op.size, Err: op.err}
	report.Record(outcome)

	if op.err != nil {
		logger.Log.Error("entry failed",
			zap.String("action", string(op.Action)),
			zap.String("path", op.RelPath),
			zap.Error(op.err))
	} else if op.Action != model.ActionSkip {
		logger.Log.Debug("applied",
			zap.String("action", string(op.Action)),
			zap.String("path", op.RelPath),
			zap.String("reason", string(op.Reason)),
			zap.Bool("dry_run", e.opts.DryRun))
	}

	if e.observer != nil {
		e.observer(outcome)
	}
}
