package embeddb

import "github.com/ubco-db/embeddb-go/internal/errs"

// Get retrieves the fixed-width data bytes stored under key, per spec.md
// §4.7. It returns ErrNotFound both for a key that was never written and
// for one whose fixed record has aged out of the retained ring — spec.md
// §7 scopes ErrOverwritten to GetVar's variable payload only.
func (e *Engine) Get(key uint64) ([]byte, error) {
	if e.closed {
		return nil, errs.ErrClosed
	}
	if e.prefilter != nil && !e.prefilter.MaybeContains(key, e.opts.KeySize) {
		return nil, errs.ErrNotFound
	}

	data, _, found, err := e.get(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.ErrNotFound
	}
	return data, nil
}

// get is the shared lookup core for Get and GetVar: it checks the
// unflushed write buffer first (it always holds the newest keys), then
// falls back to the spline-predicted page range over the circular log,
// per spec.md §4.4's "predict, then refine" search.
func (e *Engine) get(key uint64) (data []byte, varPtr uint32, found bool, err error) {
	if e.dataBufCount > 0 {
		first, _, _ := e.dataLayout.ReadRecord(e.dataWriteBuf, 0)
		if key >= first {
			slot, ok := e.dataLayout.Search(e.dataWriteBuf, key)
			if !ok {
				return nil, 0, false, nil
			}
			_, d, vp := e.dataLayout.ReadRecord(e.dataWriteBuf, slot)
			out := make([]byte, e.opts.DataSize)
			copy(out, d)
			e.stats.BufferHits++
			return out, vp, true, nil
		}
	}

	if e.spl.EffCount() == 0 {
		return nil, 0, false, nil
	}

	predicted, predLo, predHi := e.splineBounds(key)
	pageID, ok := e.linearRefine(key, predLo, predHi)
	if !ok {
		return nil, 0, false, nil
	}
	e.noteSplineError(int64(pageID) - int64(predicted))

	slot, ok := e.dataLayout.Search(e.dataReadBuf, key)
	if !ok {
		return nil, 0, false, nil
	}
	_, d, vp := e.dataLayout.ReadRecord(e.dataReadBuf, slot)
	out := make([]byte, e.opts.DataSize)
	copy(out, d)
	return out, vp, true, nil
}

// splineBounds resolves key to a predicted page and surrounding [lo, hi]
// range, probing the radix table first to narrow the spline's binary
// search when one is configured (spec.md §4.5).
func (e *Engine) splineBounds(key uint64) (predicted, lo, hi uint32) {
	if e.radix != nil {
		klo, khi := e.radix.Find(key, e.spl.EffCount())
		return e.spl.FindWithHint(key, klo, khi)
	}
	return e.spl.Find(key)
}

// linearRefine scans the spline's predicted page range, clamped to the
// data ring's currently retained logical ids, reading each candidate page
// until one whose [min, max] key bounds bracket key is found. The last
// page read is left in e.dataReadBuf for the caller to search.
func (e *Engine) linearRefine(key uint64, lo, hi uint32) (uint32, bool) {
	next := e.dataRing.NextLogicalID()
	if next == 0 {
		return 0, false
	}
	min := e.dataRing.MinLogicalID()
	max := next - 1

	if lo < min {
		lo = min
	}
	if hi > max {
		hi = max
	}
	if lo > hi {
		return 0, false
	}

	for p := lo; p <= hi; p++ {
		if err := e.readRing(e.dataRing, e.dataReadBuf, p); err != nil {
			continue
		}
		e.stats.NumReads++
		minKey := e.dataLayout.MinKey(e.dataReadBuf)
		maxKey := e.dataLayout.MaxKey(e.dataReadBuf)
		if key < minKey {
			// Page min keys are non-decreasing in p; no later page can
			// bracket key either.
			return 0, false
		}
		if key > maxKey {
			continue
		}
		return p, true
	}
	return 0, false
}
