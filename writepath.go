package embeddb

import (
	"go.uber.org/zap"

	"github.com/ubco-db/embeddb-go/internal/assert"
	"github.com/ubco-db/embeddb-go/internal/bitmap"
	"github.com/ubco-db/embeddb-go/internal/circularlog"
	"github.com/ubco-db/embeddb-go/internal/errs"
	"github.com/ubco-db/embeddb-go/internal/page"
)

// Put appends one fixed-width record, per spec.md §4.6. Keys must be
// strictly ascending across the lifetime of the engine.
func (e *Engine) Put(key uint64, data []byte) error {
	if e.closed {
		return errs.ErrClosed
	}
	if e.haveAnyKey && key <= e.prevKey {
		return errs.ErrOrderingViolation
	}
	return e.putRecord(key, data, page.NoVarPtr)
}

// PutVar appends a record together with a variable-length payload, per
// spec.md §4.6. payload may be nil to mark the record as having no
// variable data without disabling the feature for future records.
func (e *Engine) PutVar(key uint64, data []byte, payload []byte) error {
	if e.closed {
		return errs.ErrClosed
	}
	if !e.opts.UseVarData {
		return errs.ErrVarDataDisabled
	}
	if e.haveAnyKey && key <= e.prevKey {
		return errs.ErrOrderingViolation
	}

	var varPtr uint32 = page.NoVarPtr
	if payload != nil {
		willRollDataPage := e.dataBufCount >= int(e.dataLayout.RecordsPerPage)
		lacksLengthPrefixRoom := e.varWriteOffset+4 > e.varLayout.PageSize
		if willRollDataPage || lacksLengthPrefixRoom {
			if err := e.flushVarBuffer(); err != nil {
				return err
			}
		}
		varPtr = e.currentVarPointer()
	}

	if err := e.putRecord(key, data, varPtr); err != nil {
		return err
	}
	if payload == nil {
		return nil
	}
	return e.writeVarPayload(key, payload)
}

// putRecord installs key/data (and an already-resolved variable pointer)
// into the current data write buffer slot, rolling a full buffer to the
// circular log first.
func (e *Engine) putRecord(key uint64, data []byte, varPtr uint32) error {
	if e.dataBufCount >= int(e.dataLayout.RecordsPerPage) {
		if err := e.rollDataPage(); err != nil {
			return err
		}
	}
	assert.That(e.dataBufCount < int(e.dataLayout.RecordsPerPage), "data buffer still full after roll")

	e.dataLayout.WriteRecord(e.dataWriteBuf, e.dataBufCount, key, data, varPtr)
	e.dataLayout.UpdateMinMax(e.dataWriteBuf, key, data, e.opts.DataLess)
	if e.opts.UseIndex {
		bm := bitmap.FromBytes(e.opts.BitmapBounds.Width(), e.dataLayout.Bitmap(e.dataWriteBuf))
		e.opts.BitmapBounds.Update(data, bm)
		copy(e.dataLayout.Bitmap(e.dataWriteBuf), bm.Bytes())
	}
	e.dataBufCount++

	if e.haveAnyKey {
		e.keyDiffSum += key - e.prevKey
		e.keyDiffCount++
	}
	e.prevKey = key
	e.haveAnyKey = true

	if e.prefilter != nil {
		e.prefilter.Add(key, e.opts.KeySize)
	}
	return nil
}

// rollDataPage writes the current data buffer (if non-empty) to the data
// ring, records its spline knot, and (when indexing is enabled) promotes
// its bitmap into the index write buffer — spec.md §4.6 step 2 and the
// explicit flush contract.
func (e *Engine) rollDataPage() error {
	if e.dataBufCount == 0 {
		return nil
	}

	minKey := e.dataLayout.MinKey(e.dataWriteBuf)
	pageID, err := e.writeRing(e.dataRing, e.dataWriteBuf, e.onDataEvict)
	if err != nil {
		return err
	}
	e.stats.NumWrites++
	e.log.Debug("data page written", zap.Uint32("logicalID", pageID), zap.Uint64("minKey", minKey))

	e.spl.Add(minKey, pageID)
	if e.radix != nil {
		e.radix.MaybeGrow(e.spl.KeyAt(0), minKey, e.spl.KeyAt, e.spl.EffCount())
	}

	if e.opts.UseIndex {
		if e.idxBufCount == 0 {
			e.idxLayout.InitEmpty(e.idxWriteBuf, pageID)
		}
		e.idxLayout.AppendBitmap(e.idxWriteBuf, e.dataLayout.Bitmap(e.dataWriteBuf))
		e.idxBufCount++
		if e.idxBufCount >= int(e.idxLayout.EntriesPerPage) {
			if err := e.rollIndexPage(); err != nil {
				return err
			}
		}
	}

	e.dataBufCount = 0
	e.dataLayout.InitEmpty(e.dataWriteBuf)
	return nil
}

func (e *Engine) rollIndexPage() error {
	if e.idxBufCount == 0 {
		return nil
	}
	if _, err := e.writeRing(e.idxRing, e.idxWriteBuf, e.onIdxEvict); err != nil {
		return err
	}
	e.stats.NumIdxWrites++
	e.idxBufCount = 0
	clear(e.idxWriteBuf)
	return nil
}

// onDataEvict implements spec.md §4.3's data-ring eviction side effects:
// advance the engine's min-key estimate by
// eraseSizeInPages x recordsPerPage x avgKeyDiff, then clean the spline.
func (e *Engine) onDataEvict(r *circularlog.Ring, firstEvicted, count uint32) error {
	avgKeyDiff := uint64(1)
	if e.keyDiffCount > 0 {
		avgKeyDiff = e.keyDiffSum / e.keyDiffCount
		if avgKeyDiff == 0 {
			avgKeyDiff = 1
		}
	}
	e.minKeyEver += uint64(count) * uint64(e.dataLayout.RecordsPerPage) * avgKeyDiff
	e.spl.Clean(e.minKeyEver)
	e.log.Debug("data ring eviction",
		zap.Uint32("firstEvictedLogical", firstEvicted),
		zap.Uint32("count", count),
		zap.Uint64("minKeyEstimate", e.minKeyEver))
	return nil
}

// onIdxEvict has no side effects of its own beyond what the ring already
// does (advance min/free cursors); the index ring's content is entirely
// derivable from the data ring it shadows.
func (e *Engine) onIdxEvict(r *circularlog.Ring, firstEvicted, count uint32) error {
	e.log.Debug("index ring eviction", zap.Uint32("firstEvictedLogical", firstEvicted), zap.Uint32("count", count))
	return nil
}
