package embeddb

import (
	"github.com/ubco-db/embeddb-go/internal/bitmap"
	"github.com/ubco-db/embeddb-go/internal/errs"
	"github.com/ubco-db/embeddb-go/internal/page"
)

// RangeOption narrows a range scan (spec.md §4.8).
type RangeOption func(*Iterator)

// WithMinKey restricts the scan to keys >= key.
func WithMinKey(key uint64) RangeOption {
	return func(it *Iterator) {
		it.hasMinKey = true
		it.minKey = key
	}
}

// WithMaxKey restricts the scan to keys <= key; the scan stops as soon as
// a record exceeding it is reached, since keys are strictly ascending.
func WithMaxKey(key uint64) RangeOption {
	return func(it *Iterator) {
		it.hasMaxKey = true
		it.maxKey = key
	}
}

// WithDataRange restricts the scan to records whose data column falls in
// [min, max], pushed down through the bitmap secondary index (spec.md
// §4.8) to skip whole pages the index can prove don't qualify, and
// refined per-record since the bitmap test is bucket-grained.
func WithDataRange(min, max []byte) RangeOption {
	return func(it *Iterator) {
		it.dataPredicate = true
		it.dataMin = append([]byte(nil), min...)
		it.dataMax = append([]byte(nil), max...)
	}
}

// Iterator walks records in ascending key order over a fixed snapshot of
// the data ring's current retained range, per spec.md §4.8. It is not
// safe for concurrent use alongside Put/PutVar.
type Iterator struct {
	e *Engine

	hasMinKey bool
	minKey    uint64
	hasMaxKey bool
	maxKey    uint64

	dataPredicate bool
	dataMin       []byte
	dataMax       []byte
	queryBitmap   *bitmap.Bitmap

	nextDataPage  uint32
	lastDataPage  uint32
	scannedBuffer bool

	buf   []byte
	count int
	slot  int
	done  bool

	idxBuf            []byte
	idxLoaded         bool
	idxPageID         uint32
	entriesPerIdxPage uint32
}

// NewIterator constructs a range scan over the engine's current state.
func (e *Engine) NewIterator(opts ...RangeOption) (*Iterator, error) {
	if e.closed {
		return nil, errs.ErrClosed
	}

	it := &Iterator{e: e, buf: make([]byte, e.opts.PageSize)}
	for _, o := range opts {
		o(it)
	}

	if it.dataPredicate {
		if !e.opts.UseIndex {
			return nil, errs.ErrIndexDisabled
		}
		bm := bitmap.New(e.opts.BitmapBounds.Width())
		e.opts.BitmapBounds.BuildFromRange(it.dataMin, it.dataMax, bm)
		it.queryBitmap = bm
		it.idxBuf = make([]byte, e.opts.PageSize)
		it.entriesPerIdxPage = e.idxLayout.EntriesPerPage
	}

	// An empty ring range (nextDataPage=1, lastDataPage=0) makes the ring
	// loop in loadNextDataPage a no-op, falling straight through to its
	// unflushed-write-buffer scan — needed since a fresh engine may hold
	// all of its records in the buffer with nothing flushed yet.
	it.nextDataPage, it.lastDataPage = 1, 0

	next := e.dataRing.NextLogicalID()
	if next == 0 {
		return it, nil
	}
	lo := e.dataRing.MinLogicalID()
	hi := next - 1

	if it.hasMinKey && e.spl.EffCount() > 0 {
		_, predLo, _ := e.splineBounds(it.minKey)
		if predLo > lo {
			lo = predLo
		}
	}
	if it.hasMaxKey && e.spl.EffCount() > 0 {
		_, _, predHi := e.splineBounds(it.maxKey)
		if predHi < hi {
			hi = predHi
		}
	}
	if lo > hi {
		return it, nil
	}

	it.nextDataPage = lo
	it.lastDataPage = hi
	return it, nil
}

// pageSkippable reports whether dataPage can be proven, via its covering
// index page's bitmap, to hold nothing matching the query bitmap. It only
// ever returns true on a positive proof; any uncertainty (index page
// already evicted, not yet written) falls through to reading the data
// page directly, per the bitmap's one-sided contract.
func (it *Iterator) pageSkippable(dataPage uint32) (bool, error) {
	e := it.e
	idxPageID := dataPage / it.entriesPerIdxPage
	if !e.idxRing.Contains(idxPageID) {
		return false, nil
	}
	if !it.idxLoaded || it.idxPageID != idxPageID {
		if err := e.readRing(e.idxRing, it.idxBuf, idxPageID); err != nil {
			it.idxLoaded = false
			return false, nil
		}
		e.stats.NumIdxReads++
		it.idxPageID = idxPageID
		it.idxLoaded = true
	}

	first := e.idxLayout.FirstCoveredDataPage(it.idxBuf)
	if dataPage < first {
		return false, nil
	}
	slot := int(dataPage - first)
	if slot >= int(e.idxLayout.Count(it.idxBuf)) {
		return false, nil
	}

	bm := bitmap.FromBytes(e.opts.BitmapBounds.Width(), e.idxLayout.BitmapAt(it.idxBuf, slot))
	return !bm.IntersectsAny(it.queryBitmap), nil
}

// loadNextDataPage advances to the next data page worth scanning,
// skipping pages the bitmap index proves don't qualify. Once every
// flushed page in range has been visited, it scans the live, unflushed
// write buffer exactly once as a final synthetic page (spec.md §4.8 step
// 2), since its records are not yet reachable through the data ring.
func (it *Iterator) loadNextDataPage() (bool, error) {
	e := it.e
	for it.nextDataPage <= it.lastDataPage {
		p := it.nextDataPage
		it.nextDataPage++

		if it.queryBitmap != nil {
			skip, err := it.pageSkippable(p)
			if err != nil {
				return false, err
			}
			if skip {
				continue
			}
		}

		if err := e.readRing(e.dataRing, it.buf, p); err != nil {
			continue
		}
		e.stats.NumReads++

		it.count = int(e.dataLayout.RecordCount(it.buf))
		it.slot = 0
		if it.count == 0 {
			continue
		}
		return true, nil
	}

	if !it.scannedBuffer {
		it.scannedBuffer = true
		if e.dataBufCount > 0 {
			copy(it.buf, e.dataWriteBuf)
			it.count = e.dataBufCount
			it.slot = 0
			return true, nil
		}
	}
	return false, nil
}

// Next advances the iterator and returns the next qualifying record. ok is
// false once the scan is exhausted or a WithMaxKey bound has been passed.
// The variable payload of the returned record, if any, can be retrieved
// with Payload.
func (it *Iterator) Next() (key uint64, data []byte, ok bool, err error) {
	e := it.e
	for {
		if it.done {
			return 0, nil, false, nil
		}
		if it.slot >= it.count {
			more, lerr := it.loadNextDataPage()
			if lerr != nil {
				it.done = true
				return 0, nil, false, lerr
			}
			if !more {
				it.done = true
				return 0, nil, false, nil
			}
			continue
		}

		k, d, vp := e.dataLayout.ReadRecord(it.buf, it.slot)
		it.slot++

		if it.hasMinKey && k < it.minKey {
			continue
		}
		if it.hasMaxKey && k > it.maxKey {
			it.done = true
			return 0, nil, false, nil
		}
		if it.queryBitmap != nil {
			row := bitmap.New(e.opts.BitmapBounds.Width())
			e.opts.BitmapBounds.Update(d, row)
			if !row.IntersectsAny(it.queryBitmap) {
				continue
			}
			if e.opts.DataLess(d, it.dataMin) || e.opts.DataLess(it.dataMax, d) {
				continue
			}
		}

		out := make([]byte, e.opts.DataSize)
		copy(out, d)
		e.lastReadKey = k
		e.lastReadVarPtr = vp
		return k, out, true, nil
	}
}

// Payload returns the variable payload of the record last returned by
// Next, or nil if that record had none. It returns ErrOverwritten if the
// payload has since aged out of the variable ring.
func (it *Iterator) Payload() ([]byte, error) {
	e := it.e
	if !e.opts.UseVarData {
		return nil, errs.ErrVarDataDisabled
	}
	if e.lastReadVarPtr == page.NoVarPtr {
		return nil, nil
	}
	if e.lastReadKey < e.minVarRecordID {
		return nil, errs.ErrOverwritten
	}
	return e.readVarPayload(e.lastReadVarPtr)
}

// Close releases the iterator. It does not need to be called for
// correctness, only to drop its page buffers promptly.
func (it *Iterator) Close() error {
	it.done = true
	it.buf = nil
	it.idxBuf = nil
	return nil
}
