package pipeline

import (
	"chroni/internal/model"
	"context"
	"slices"
	"strings"
	"time"
)

// Debounce collects events until no new one arrives for delay and then emits
// the batch, one event per path (the latest) ordered by path. Whatever is
// pending when inCh closes is flushed before the output closes. Once ctx is
// done the output closes and pending events are dropped.
func Debounce(ctx context.Context, inCh <-chan model.FileEvent, delay time.Duration) <-chan []model.FileEvent {
	outCh := make(chan []model.FileEvent, 1)

	go func() {
		defer close(outCh)

		pending := make(map[string]model.FileEvent)
		timer := time.NewTimer(delay)
		timer.Stop()
		defer timer.Stop()

		flush := func() bool {
			if len(pending) == 0 {
				return true
			}
			batch := make([]model.FileEvent, 0, len(pending))
			for _, ev := range pending {
				batch = append(batch, ev)
			}
			slices.SortFunc(batch, func(a, b model.FileEvent) int {
				return strings.Compare(a.Path, b.Path)
			})
			clear(pending)

			select {
			case outCh <- batch:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-inCh:
				if !ok {
					flush()
					return
				}
				pending[event.Path] = event
				timer.Reset(delay)

			case <-timer.C:
				if !flush() {
					return
				}
			}
		}
	}()

	return outCh
}
