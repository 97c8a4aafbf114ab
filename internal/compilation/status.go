package compilation

import "github.com/specialistvlad/aotgraph/internal/codegen"

// Phase is the coarse stage a compilation is in.
type Phase string

const (
	PhaseRooting   Phase = "rooting"
	PhaseIdle      Phase = "idle"
	PhaseComputing Phase = "computing"
	PhaseEmitting  Phase = "emitting"
	PhaseDone      Phase = "done"
)

// Status is a point-in-time progress report. It is safe to take while
// Compile runs.
type Status struct {
	Phase   Phase            `json:"phase"`
	Marked  int              `json:"marked"`
	Batches int64            `json:"batches"`
	Results map[string]int64 `json:"results"`
}

// Status reports progress.
func (c *Compilation) Status() Status {
	s := Status{
		Phase:   c.phase.Load().(Phase),
		Marked:  c.analyzer.MarkedCount(),
		Batches: c.batches.Load(),
		Results: make(map[string]int64, len(c.results)),
	}
	for kind := range c.results {
		s.Results[codegen.ResultKind(kind).String()] = c.results[kind].Load()
	}
	return s
}
