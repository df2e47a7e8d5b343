package model

import "time"

type Report struct {
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome
	Counts     map[Action]int
	Bytes      int64
	Failed     int
}

func NewReport(dryRun bool) *Report {
	return &Report{
		DryRun:    dryRun,
		StartedAt: time.Now(),
		Counts:    make(map[Action]int),
	}
}

func (r *Report) Record(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)

	if o.Err != nil {
		r.Failed++
		return
	}

	r.Counts[o.Action]++
	if o.Action == ActionCopy {
		r.Bytes += o.Size
	}
}

func (r *Report) Finish() {
	r.FinishedAt = time.Now()
}

func (r *Report) Decisions() []Decision {
	out := make([]Decision, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out = append(out, o.Decision)
	}

	return out
}

// Changed counts outcomes that touched (or in a dry run would touch) the destination.
func (r *Report) Changed() int {
	return r.Counts[ActionCreateDir] + r.Counts[ActionCopy] + r.Counts[ActionDelete]
}
