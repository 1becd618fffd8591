// Package embeddb implements the embedded time-series / append-only
// key-value storage engine: page-oriented circular logs for data, index
// and variable payloads, a streaming spline learned index with an optional
// radix accelerator, and a bitmap secondary index for predicate pushdown.
//
// The engine's public surface (Put/PutVar/Get/GetVar/Flush/Close, plus the
// iterator) plays the role FlashLog's top-level DB interface (main.go)
// plays for that engine, generalized from an LSM-style memtable+SST design
// to the flash-specific circular-log + learned-index design this engine
// calls for.
package embeddb

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"go.uber.org/zap"

	"github.com/ubco-db/embeddb-go/internal/backend"
	"github.com/ubco-db/embeddb-go/internal/bitmap"
	"github.com/ubco-db/embeddb-go/internal/circularlog"
	"github.com/ubco-db/embeddb-go/internal/elog"
	"github.com/ubco-db/embeddb-go/internal/errs"
	"github.com/ubco-db/embeddb-go/internal/page"
	"github.com/ubco-db/embeddb-go/internal/radix"
	"github.com/ubco-db/embeddb-go/internal/spline"
)

// Engine is the single process-wide instance over one database (spec.md
// §3's Engine State): it owns all three file backends, the in-memory
// buffer pool, and the spline+radix learned index. It is not safe for
// concurrent use — spec.md §5 assumes a single writer thread and no
// reader/writer overlap.
type Engine struct {
	opts Options
	log  elog.Logger

	dataLayout *page.Layout
	idxLayout  *page.IndexLayout
	varLayout  *page.VarLayout

	dataRing *circularlog.Ring
	idxRing  *circularlog.Ring
	varRing  *circularlog.Ring

	spl   *spline.Spline
	radix *radix.Table

	prefilter *bitmap.Prefilter

	dataWriteBuf []byte
	dataReadBuf  []byte
	idxWriteBuf  []byte
	idxReadBuf   []byte
	varWriteBuf  []byte
	varReadBuf   []byte

	dataBufCount int
	idxBufCount  int

	varWriteLogicalID uint32
	varWriteOffset    uint32
	varCurrentMaxKey  uint64
	minVarRecordID    uint64

	haveAnyKey bool
	prevKey    uint64
	minKeyEver uint64

	keyDiffSum   uint64
	keyDiffCount uint64

	lastReadVarPtr uint32
	lastReadKey    uint64

	// openStreams tracks every VarStream handed out by StreamRead that has
	// not yet been Closed, keyed by the record key it was opened for, so
	// onVarEvict can warn when eviction advances past one still in use.
	openStreams map[*VarStream]uint64

	stats  Stats
	closed bool
}

// New constructs an engine over fresh backends, discarding any existing
// content (spec.md §6's RESET_DATA behavior).
func New(dataBackend, idxBackend, varBackend backend.FileInterface, opts Options) (*Engine, error) {
	return open(dataBackend, idxBackend, varBackend, opts, backend.Truncate)
}

// Open constructs an engine over possibly-existing backends, rehydrating
// the circular logs, the spline and the bloom prefilter from persisted
// content when present, per spec.md §4.3's rehydration procedure.
func Open(dataBackend, idxBackend, varBackend backend.FileInterface, opts Options) (*Engine, error) {
	return open(dataBackend, idxBackend, varBackend, opts, backend.OpenExisting)
}

func decodeLogicalID(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[0:4])
}

func validateOptions(o *Options) error {
	if o.KeySize < 1 || o.KeySize > 8 {
		return fmt.Errorf("%w: keySize must be in 1..8, got %d", errs.ErrConfigInvalid, o.KeySize)
	}
	if o.DataSize == 0 || o.PageSize == 0 {
		return fmt.Errorf("%w: dataSize and pageSize must be nonzero", errs.ErrConfigInvalid)
	}
	if o.EraseSizeInPages == 0 {
		return fmt.Errorf("%w: eraseSizeInPages must be nonzero", errs.ErrConfigInvalid)
	}
	if o.UseChecksums && o.PageSize <= 4 {
		return fmt.Errorf("%w: pageSize too small to reserve a checksum trailer", errs.ErrConfigInvalid)
	}
	if o.UseIndex {
		if o.NumDataPages < 4*o.EraseSizeInPages {
			return fmt.Errorf("%w: numDataPages must be >= 4x eraseSizeInPages when indexing is enabled", errs.ErrConfigInvalid)
		}
		if o.BitmapBounds == nil {
			return fmt.Errorf("%w: index enabled without bitmap bounds", errs.ErrConfigInvalid)
		}
		if o.NumIndexPages == 0 {
			return fmt.Errorf("%w: numIndexPages must be nonzero when indexing is enabled", errs.ErrConfigInvalid)
		}
	}
	if o.UseVarData && o.NumVarPages == 0 {
		return fmt.Errorf("%w: numVarPages must be nonzero when variable data is enabled", errs.ErrConfigInvalid)
	}
	if o.DataLess == nil {
		o.DataLess = defaultDataLess
	}
	return nil
}

// contentSize returns the page payload available to the codec layer: the
// full page size, minus a 4-byte CRC32 trailer when checksums are enabled
// (SPEC_FULL.md §3.1). The physical backends always see the full PageSize.
func contentSize(o Options) uint32 {
	if o.UseChecksums {
		return o.PageSize - 4
	}
	return o.PageSize
}

func open(dataBackend, idxBackend, varBackend backend.FileInterface, opts Options, mode backend.Mode) (*Engine, error) {
	if err := validateOptions(&opts); err != nil {
		return nil, err
	}

	bmBits := uint(0)
	if opts.UseIndex {
		bmBits = opts.BitmapBounds.Width()
	}

	dataLayout := page.NewLayout(contentSize(opts), opts.KeySize, opts.DataSize, bmBits, opts.UseMinMax, opts.UseVarData)
	if dataLayout.RecordsPerPage == 0 {
		return nil, fmt.Errorf("%w: pageSize too small for one record", errs.ErrConfigInvalid)
	}

	e := &Engine{opts: opts, log: opts.Logger, dataLayout: dataLayout, openStreams: make(map[*VarStream]uint64)}

	dataRing, err := circularlog.New(dataBackend, opts.PageSize, opts.NumDataPages, opts.EraseSizeInPages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrConfigInvalid, err)
	}
	if err := dataRing.Open(mode, decodeLogicalID); err != nil {
		return nil, errs.IO(err)
	}
	e.dataRing = dataRing

	e.dataWriteBuf = make([]byte, opts.PageSize)
	e.dataReadBuf = make([]byte, opts.PageSize)
	dataLayout.InitEmpty(e.dataWriteBuf)

	e.spl = spline.New(opts.NumSplinePoints, opts.IndexMaxError)
	if opts.RadixBits > 0 {
		e.radix = radix.New(opts.RadixBits)
	}
	if opts.UseBloomPrefilter {
		e.prefilter = bitmap.NewPrefilter(opts.BloomExpectedKeys, opts.BloomFalsePosRate)
	}

	if opts.UseIndex {
		idxLayout := page.NewIndexLayout(contentSize(opts), uint32(bitmap.WidthBytes(bmBits)))
		if idxLayout.EntriesPerPage == 0 {
			return nil, fmt.Errorf("%w: pageSize too small for one index entry", errs.ErrConfigInvalid)
		}
		e.idxLayout = idxLayout
		idxRing, err := circularlog.New(idxBackend, opts.PageSize, opts.NumIndexPages, opts.EraseSizeInPages)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrConfigInvalid, err)
		}
		if err := idxRing.Open(mode, decodeLogicalID); err != nil {
			return nil, errs.IO(err)
		}
		e.idxRing = idxRing
		e.idxWriteBuf = make([]byte, opts.PageSize)
		e.idxReadBuf = make([]byte, opts.PageSize)
	}

	if opts.UseVarData {
		varLayout := page.NewVarLayout(contentSize(opts), opts.KeySize)
		e.varLayout = varLayout
		varRing, err := circularlog.New(varBackend, opts.PageSize, opts.NumVarPages, opts.EraseSizeInPages)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrConfigInvalid, err)
		}
		if err := varRing.Open(mode, decodeLogicalID); err != nil {
			return nil, errs.IO(err)
		}
		e.varRing = varRing
		e.varWriteBuf = make([]byte, opts.PageSize)
		e.varReadBuf = make([]byte, opts.PageSize)
		e.varWriteLogicalID = varRing.NextLogicalID()
		varLayout.InitEmpty(e.varWriteBuf, e.varWriteLogicalID, 0)
		e.varWriteOffset = varLayout.StreamStart()
	}

	if dataRing.NextLogicalID() > 0 {
		if err := e.rehydrate(); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// rehydrate rebuilds the spline (and prefilter, and the ordering cursor)
// by walking every retained data page's minimum key, per spec.md §4.3: "If
// rehydrating the data ring, ... re-walk every retained data page minimum
// key into the spline."
func (e *Engine) rehydrate() error {
	e.log.Debug("rehydrating engine state from retained data pages",
		zap.Uint32("minLogicalID", e.dataRing.MinLogicalID()),
		zap.Uint32("nextLogicalID", e.dataRing.NextLogicalID()))

	buf := make([]byte, e.opts.PageSize)
	min := e.dataRing.MinLogicalID()
	next := e.dataRing.NextLogicalID()
	first := true

	for p := min; p < next; p++ {
		if err := e.readRing(e.dataRing, buf, p); err != nil {
			return err
		}
		minKey := e.dataLayout.MinKey(buf)
		if first {
			e.minKeyEver = minKey
			first = false
		}
		e.spl.Add(minKey, p)
		if e.radix != nil {
			e.radix.MaybeGrow(e.spl.KeyAt(0), minKey, e.spl.KeyAt, e.spl.EffCount())
		}

		n := int(e.dataLayout.RecordCount(buf))
		for i := 0; i < n; i++ {
			k, _, _ := e.dataLayout.ReadRecord(buf, i)
			if e.prefilter != nil {
				e.prefilter.Add(k, e.opts.KeySize)
			}
			if e.haveAnyKey {
				e.keyDiffSum += k - e.prevKey
				e.keyDiffCount++
			}
			e.prevKey = k
			e.haveAnyKey = true
		}
	}
	return nil
}

// stampChecksum and verifyChecksum implement the optional page-level CRC32
// trailer from SPEC_FULL.md §3.1, following FlashLog's own crc32.NewIEEE
// idiom (sst/writer.go, wal.go).
func (e *Engine) stampChecksum(buf []byte) {
	if !e.opts.UseChecksums {
		return
	}
	n := contentSize(e.opts)
	sum := crc32.ChecksumIEEE(buf[:n])
	binary.LittleEndian.PutUint32(buf[n:n+4], sum)
}

func (e *Engine) verifyChecksum(buf []byte) error {
	if !e.opts.UseChecksums {
		return nil
	}
	n := contentSize(e.opts)
	want := binary.LittleEndian.Uint32(buf[n : n+4])
	got := crc32.ChecksumIEEE(buf[:n])
	if want != got {
		return errs.ErrPageCorrupt
	}
	return nil
}

func (e *Engine) writeRing(r *circularlog.Ring, buf []byte, onEvict circularlog.EvictFunc) (uint32, error) {
	// Stamp the logical id the ring is about to assign, so rehydration can
	// read it back from the page header.
	binary.LittleEndian.PutUint32(buf[0:4], r.NextLogicalID())
	e.stampChecksum(buf)
	id, err := r.Write(buf, onEvict)
	if err != nil {
		return 0, errs.IO(err)
	}
	return id, nil
}

func (e *Engine) readRing(r *circularlog.Ring, buf []byte, logicalID uint32) error {
	if err := r.ReadLogical(buf, logicalID); err != nil {
		return errs.IO(err)
	}
	return e.verifyChecksum(buf)
}

// Flush writes every partial buffer (data, index, var) and syncs every
// backend. Flush is never called implicitly; spec.md §4.6 requires the
// caller to flush before Close to persist the tail.
func (e *Engine) Flush() error {
	if e.closed {
		return errs.ErrClosed
	}
	if err := e.rollDataPage(); err != nil {
		return err
	}
	if e.opts.UseIndex {
		if err := e.rollIndexPage(); err != nil {
			return err
		}
	}
	if e.opts.UseVarData {
		if err := e.flushVarBuffer(); err != nil {
			return err
		}
	}
	if err := e.dataRing.Flush(); err != nil {
		return errs.IO(err)
	}
	if e.opts.UseIndex {
		if err := e.idxRing.Flush(); err != nil {
			return errs.IO(err)
		}
	}
	if e.opts.UseVarData {
		if err := e.varRing.Flush(); err != nil {
			return errs.IO(err)
		}
	}
	return nil
}

// Close releases the engine's backends. It does not flush implicitly
// (spec.md §3's Engine State lifecycle note).
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if err := e.dataRing.Close(); err != nil {
		return errs.IO(err)
	}
	if e.idxRing != nil {
		if err := e.idxRing.Close(); err != nil {
			return errs.IO(err)
		}
	}
	if e.varRing != nil {
		if err := e.varRing.Close(); err != nil {
			return errs.IO(err)
		}
	}
	return nil
}
