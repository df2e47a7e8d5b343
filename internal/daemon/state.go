package daemon

import (
	"chroni/internal/model"
	"sync"
	"time"
)

type State struct {
	mu   sync.RWMutex
	snap model.WatchSnapshot
}

func NewState(opts model.Options) *State {
	return &State{
		snap: model.WatchSnapshot{
			Src:       opts.SrcRoot,
			Dst:       opts.DstRoot,
			Mode:      string(opts.Mode),
			StartedAt: time.Now(),
		},
	}
}

func (s *State) RecordRun(report *model.Report, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Runs++
	s.snap.LastRun = new(time.Now())
	s.snap.LastError = ""
	if report != nil {
		s.snap.Changed += report.Changed()
		s.snap.Failed += report.Failed
	}
	if err != nil {
		s.snap.LastError = err.Error()
	}
}

func (s *State) Snapshot() model.WatchSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snap
	if snap.LastRun != nil {
		snap.LastRun = new(*snap.LastRun)
	}
	return snap
}
