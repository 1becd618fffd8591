package embeddb

import (
	"encoding/binary"
	"io"

	"go.uber.org/zap"

	"github.com/ubco-db/embeddb-go/internal/assert"
	"github.com/ubco-db/embeddb-go/internal/circularlog"
	"github.com/ubco-db/embeddb-go/internal/errs"
	"github.com/ubco-db/embeddb-go/internal/page"
)

// currentVarPointer computes the 4-byte pointer a record stores to locate
// its variable payload (spec.md §3/§6): a physical byte address into the
// var ring, expressed as physicalPage*contentSize + offsetWithinPage.
//
// This collapses what the spec describes as "an absolute logical byte
// offset modulo the ring's byte size": since physical = logical mod
// numVarPages always holds for page placement, and contentSize divides
// the ring's total byte size evenly,
//
//	(logicalPage*contentSize + offset) mod (numVarPages*contentSize)
//	    == (logicalPage mod numVarPages)*contentSize + offset
//	    == physicalPage*contentSize + offset
//
// so the pointer can be decoded straight into a physical page and offset
// without ever recovering the logical id — see DESIGN.md.
func (e *Engine) currentVarPointer() uint32 {
	contentSize := e.varLayout.PageSize
	phys := e.varWriteLogicalID % e.opts.NumVarPages
	return phys*contentSize + e.varWriteOffset
}

// appendVarBytes copies data into the var write buffer, rolling full pages
// to the var ring as the buffer fills.
func (e *Engine) appendVarBytes(data []byte) error {
	contentSize := e.varLayout.PageSize
	for len(data) > 0 {
		room := contentSize - e.varWriteOffset
		n := uint32(len(data))
		if n > room {
			n = room
		}
		copy(e.varWriteBuf[e.varWriteOffset:e.varWriteOffset+n], data[:n])
		e.varWriteOffset += n
		data = data[n:]
		if e.varWriteOffset >= contentSize {
			if err := e.rollVarPage(); err != nil {
				return err
			}
		}
	}
	return nil
}

// rollVarPage stamps the buffer's max-key header field, writes it to the
// var ring, and starts a fresh page.
func (e *Engine) rollVarPage() error {
	assert.That(e.varWriteOffset <= e.varLayout.PageSize, "var write offset %d exceeds page content size %d", e.varWriteOffset, e.varLayout.PageSize)
	e.varLayout.SetMaxKey(e.varWriteBuf, e.varCurrentMaxKey)
	if _, err := e.writeRing(e.varRing, e.varWriteBuf, e.onVarEvict); err != nil {
		return err
	}
	e.stats.NumWrites++

	e.varWriteLogicalID = e.varRing.NextLogicalID()
	e.varLayout.InitEmpty(e.varWriteBuf, e.varWriteLogicalID, 0)
	e.varWriteOffset = e.varLayout.StreamStart()
	return nil
}

// flushVarBuffer rolls the current var page if it holds any stream
// content beyond its header, per spec.md §4.6's explicit flush contract.
func (e *Engine) flushVarBuffer() error {
	if e.varWriteOffset <= e.varLayout.StreamStart() {
		return nil
	}
	return e.rollVarPage()
}

// writeVarPayload writes a length-prefixed variable payload into the
// stream, chunking across page boundaries as needed (spec.md §4.6's
// variable-data chunked stream layer).
func (e *Engine) writeVarPayload(key uint64, payload []byte) error {
	e.varCurrentMaxKey = key
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if err := e.appendVarBytes(lenBuf[:]); err != nil {
		return err
	}
	return e.appendVarBytes(payload)
}

// onVarEvict recovers minVarRecordID from the last page of the
// about-to-be-evicted block, per spec.md §4.3: the smallest key whose
// variable payload is still guaranteed retained is one past the max key
// stamped on that page.
func (e *Engine) onVarEvict(r *circularlog.Ring, firstEvicted, count uint32) error {
	lastEvicted := firstEvicted + count - 1
	buf := make([]byte, e.opts.PageSize)
	if err := r.ReadLogical(buf, lastEvicted); err != nil {
		return errs.IO(err)
	}
	if err := e.verifyChecksum(buf); err != nil {
		return err
	}
	e.minVarRecordID = e.varLayout.MaxKey(buf) + 1
	e.warnStreamsEvicted()
	return nil
}

// warnStreamsEvicted logs a Warn for every still-open VarStream whose
// record key has just aged out of the variable ring, per SPEC_FULL.md
// §1.1's "ring eviction advancing past a key still referenced by an open
// var-stream" case. The stream itself is left open: its next Read will
// surface the failure through the normal error path, this is observability
// only.
func (e *Engine) warnStreamsEvicted() {
	for _, key := range e.openStreams {
		if key < e.minVarRecordID {
			e.log.Warn("var stream overrun by ring eviction",
				zap.Uint64("key", key), zap.Uint64("minVarRecordID", e.minVarRecordID))
		}
	}
}

// readVarSpan reads n bytes starting at physical page phys, offset
// offset, crossing page boundaries as needed, and returns the cursor
// position immediately following the span.
func (e *Engine) readVarSpan(phys, offset, n uint32) ([]byte, uint32, uint32, error) {
	contentSize := e.varLayout.PageSize
	numPages := e.opts.NumVarPages
	out := make([]byte, n)
	written := uint32(0)

	for written < n {
		if err := e.varRing.ReadPhysical(e.varReadBuf, phys); err != nil {
			return nil, 0, 0, errs.IO(err)
		}
		if err := e.verifyChecksum(e.varReadBuf); err != nil {
			return nil, 0, 0, err
		}
		avail := contentSize - offset
		need := n - written
		take := avail
		if take > need {
			take = need
		}
		copy(out[written:written+take], e.varReadBuf[offset:offset+take])
		written += take
		offset += take
		if offset >= contentSize {
			phys = (phys + 1) % numPages
			offset = e.varLayout.StreamStart()
		}
	}
	return out, phys, offset, nil
}

func (e *Engine) readVarPayload(varPtr uint32) ([]byte, error) {
	contentSize := e.varLayout.PageSize
	phys := varPtr / contentSize
	offset := varPtr % contentSize

	lenBytes, phys2, offset2, err := e.readVarSpan(phys, offset, 4)
	if err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBytes)
	if n == 0 {
		return []byte{}, nil
	}
	payload, _, _, err := e.readVarSpan(phys2, offset2, n)
	if err != nil {
		return nil, err
	}
	e.stats.NumReads++
	return payload, nil
}

// GetVar retrieves both the fixed data and the variable payload stored
// under key, per spec.md §4.7. payload is nil when the record was
// written without one.
func (e *Engine) GetVar(key uint64) (data []byte, payload []byte, err error) {
	if e.closed {
		return nil, nil, errs.ErrClosed
	}
	if !e.opts.UseVarData {
		return nil, nil, errs.ErrVarDataDisabled
	}
	if e.prefilter != nil && !e.prefilter.MaybeContains(key, e.opts.KeySize) {
		return nil, nil, errs.ErrNotFound
	}

	data, varPtr, found, err := e.get(key)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, errs.ErrNotFound
	}
	if varPtr == page.NoVarPtr {
		return data, nil, nil
	}
	if key < e.minVarRecordID {
		return data, nil, errs.ErrOverwritten
	}

	payload, err = e.readVarPayload(varPtr)
	if err != nil {
		return data, nil, err
	}
	return data, payload, nil
}

// VarStream reads one record's variable payload incrementally, for
// callers that would rather not buffer a large payload in full on a
// constrained device. Call Close when done so the engine stops tracking
// it for eviction warnings.
type VarStream struct {
	e         *Engine
	key       uint64
	phys      uint32
	offset    uint32
	remaining uint32
}

// Len returns the number of unread payload bytes remaining.
func (vs *VarStream) Len() uint32 { return vs.remaining }

// Close releases the stream. It does not need to be called for
// correctness, only so the engine stops watching it for eviction warnings.
func (vs *VarStream) Close() error {
	delete(vs.e.openStreams, vs)
	return nil
}

// Read implements io.Reader.
func (vs *VarStream) Read(p []byte) (int, error) {
	if vs.remaining == 0 {
		return 0, io.EOF
	}
	if vs.key < vs.e.minVarRecordID {
		return 0, errs.ErrOverwritten
	}
	n := uint32(len(p))
	if n > vs.remaining {
		n = vs.remaining
	}
	if n == 0 {
		return 0, nil
	}
	chunk, phys, offset, err := vs.e.readVarSpan(vs.phys, vs.offset, n)
	if err != nil {
		return 0, err
	}
	copy(p, chunk)
	vs.phys, vs.offset = phys, offset
	vs.remaining -= n
	vs.e.stats.NumReads++
	return int(n), nil
}

// StreamRead behaves like GetVar but returns the variable payload as a
// VarStream instead of a fully-buffered slice.
func (e *Engine) StreamRead(key uint64) (data []byte, stream *VarStream, err error) {
	if e.closed {
		return nil, nil, errs.ErrClosed
	}
	if !e.opts.UseVarData {
		return nil, nil, errs.ErrVarDataDisabled
	}
	if e.prefilter != nil && !e.prefilter.MaybeContains(key, e.opts.KeySize) {
		return nil, nil, errs.ErrNotFound
	}

	data, varPtr, found, err := e.get(key)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, errs.ErrNotFound
	}
	if varPtr == page.NoVarPtr {
		return data, nil, nil
	}
	if key < e.minVarRecordID {
		return data, nil, errs.ErrOverwritten
	}

	contentSize := e.varLayout.PageSize
	phys := varPtr / contentSize
	offset := varPtr % contentSize
	lenBytes, phys2, offset2, err := e.readVarSpan(phys, offset, 4)
	if err != nil {
		return data, nil, err
	}
	n := binary.LittleEndian.Uint32(lenBytes)
	vs := &VarStream{e: e, key: key, phys: phys2, offset: offset2, remaining: n}
	e.openStreams[vs] = key
	return data, vs, nil
}
