package service

// Phase is a state of the import pipeline.
type Phase string

const (
	PhaseDetecting      Phase = "detecting"
	PhaseParsing        Phase = "parsing"
	PhaseCategorizing   Phase = "categorizing"
	PhaseDedupFiltering Phase = "dedup_filtering"
	PhaseInserting      Phase = "inserting"
	PhaseDone           Phase = "done"
	PhaseFailed         Phase = "failed"
)

// Progress is one progress notification.
type Progress struct {
	Phase     Phase   `json:"phase"`
	Processed int     `json:"processed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

// ProgressSink receives progress notifications on the importing goroutine. It must
// not block; a sink that cannot deliver should drop the event.
type ProgressSink func(Progress)

type tracker struct {
	sink ProgressSink
	last Phase
}

func newTracker(sink ProgressSink) *tracker {
	return &tracker{sink: sink}
}

func (t *tracker) emit(phase Phase, processed, total int) {
	t.last = phase
	if t.sink == nil {
		return
	}
	p := Progress{Phase: phase, Processed: processed, Total: total}
	switch {
	case phase == PhaseDone:
		p.Percent = 100
	case total > 0:
		p.Percent = float64(processed) * 100 / float64(total)
	}
	t.deliver(p)
}

// deliver drops the event if the sink panics.
func (t *tracker) deliver(p Progress) {
	defer func() { _ = recover() }()
	t.sink(p)
}

// every emits on each n-th processed row and on the last one.
func (t *tracker) every(n int, phase Phase, processed, total int) {
	if processed%n == 0 || processed == total {
		t.emit(phase, processed, total)
	}
}
