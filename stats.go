package embeddb

// Stats is a point-in-time snapshot of the engine's monotone counters
// (spec.md §7), surfaced as a concrete type per SPEC_FULL.md §3.2 rather
// than leaving counter access unspecified.
type Stats struct {
	NumReads         uint64
	NumWrites        uint64
	BufferHits       uint64
	NumIdxReads      uint64
	NumIdxWrites     uint64
	MaxErrorObserved uint32
}

// Stats returns a copy of the engine's current counters.
func (e *Engine) Stats() Stats {
	return e.stats
}

// ResetStats zeroes every counter without otherwise touching engine state.
func (e *Engine) ResetStats() {
	e.stats = Stats{}
}

func (e *Engine) noteSplineError(err int64) {
	if err < 0 {
		err = -err
	}
	if uint32(err) > e.stats.MaxErrorObserved {
		e.stats.MaxErrorObserved = uint32(err)
	}
}
