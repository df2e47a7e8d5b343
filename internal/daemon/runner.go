package daemon

import (
	"chroni/internal/logger"
	"chroni/internal/matcher"
	"chroni/internal/model"
	"chroni/internal/pipeline"
	"chroni/internal/syncer"
	"chroni/internal/watcher"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const eventBuffer = 256

// Runner mirrors once and then again after every debounced burst of source
// changes until its context ends.
type Runner struct {
	opts     model.Options
	debounce time.Duration
	state    *State
	onRun    func(*model.Report)
}

func NewRunner(opts model.Options, debounce time.Duration, state *State, onRun func(*model.Report)) *Runner {
	return &Runner{
		opts:     opts,
		debounce: debounce,
		state:    state,
		onRun:    onRun,
	}
}

func (r *Runner) Run(ctx context.Context) error {
	exclude := matcher.NewExcluder(r.opts.Exclude)

	w, err := watcher.New(eventBuffer, exclude)
	if err != nil {
		return err
	}
	if err := w.Watch(r.opts.SrcRoot); err != nil {
		w.Stop()
		return fmt.Errorf("failed to watch source: %w", err)
	}
	defer w.Stop()

	batches := pipeline.Debounce(ctx, pipeline.Filter(w.Events(), r.opts.SrcRoot, exclude), r.debounce)

	r.pass(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil

		case batch, ok := <-batches:
			if !ok {
				return nil
			}

			logger.Log.Info("source changed",
				zap.Int("events", len(batch)),
				zap.String("first", batch[0].Path))
			r.pass(ctx)
		}
	}
}

func (r *Runner) pass(ctx context.Context) {
	engine, err := syncer.New(r.opts)
	if err != nil {
		r.state.RecordRun(nil, err)
		return
	}

	report, err := engine.Run(ctx)
	if err != nil && ctx.Err() != nil {
		return
	}
	r.state.RecordRun(report, err)

	if err != nil {
		logger.Log.Error("mirror pass failed", zap.Error(err))
		return
	}

	if r.onRun != nil {
		r.onRun(report)
	}
}
