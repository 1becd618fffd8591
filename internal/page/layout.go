// Package page implements the page codec from spec.md §4.1: encoding and
// decoding of the fixed data/index/variable page formats, and the
// two-step (interpolation-guess + binary search) intra-page search.
//
// Per SPEC_FULL.md's design notes, the header layout is computed once at
// init time into a Layout value (offsets derived once) rather than
// recomputed with repeated arithmetic on every access, and every decode
// operates on a plain []byte + role, never a typed struct wrapping a
// pointer into a shared buffer pool.
package page

const (
	dataHeaderBase = 6 // 4-byte logical id + 2-byte record count
	idxHeaderSize  = 16
	varHeaderBase  = 4 // 4-byte logical id; max key follows
)

// NoVarPtr is the sentinel stored in a record's variable pointer field when
// the record has no variable payload (spec.md §3/§6).
const NoVarPtr uint32 = 0xFFFFFFFF

// Layout is the data-page header/record geometry, derived once from the
// engine's feature flags and column sizes and reused by every encode/decode
// call thereafter.
type Layout struct {
	PageSize   uint32
	KeySize    uint8
	DataSize   uint8
	BitmapBits uint // 0 disables the per-page bitmap
	UseMinMax  bool
	UseVarData bool

	BitmapOffset  uint32
	MinKeyOffset  uint32
	MaxKeyOffset  uint32
	MinDataOffset uint32
	MaxDataOffset uint32

	HeaderSize     uint32
	RecordSize     uint32
	RecordsPerPage uint32
}

// BitmapBytes returns the number of header bytes spent on the bitmap.
func (l *Layout) BitmapBytes() uint32 {
	return uint32((l.BitmapBits + 7) / 8)
}

// NewLayout computes a Layout for the given page size, column sizes and
// feature flags. It does not validate that RecordsPerPage > 0; the caller
// (engine Init) is responsible for rejecting undersized pages as
// ErrConfigInvalid.
func NewLayout(pageSize uint32, keySize, dataSize uint8, bitmapBits uint, useMinMax, useVarData bool) *Layout {
	l := &Layout{
		PageSize:   pageSize,
		KeySize:    keySize,
		DataSize:   dataSize,
		BitmapBits: bitmapBits,
		UseMinMax:  useMinMax,
		UseVarData: useVarData,
	}

	offset := uint32(dataHeaderBase)
	l.BitmapOffset = offset
	offset += l.BitmapBytes()

	if useMinMax {
		l.MinKeyOffset = offset
		offset += uint32(keySize)
		l.MaxKeyOffset = offset
		offset += uint32(keySize)
		l.MinDataOffset = offset
		offset += uint32(dataSize)
		l.MaxDataOffset = offset
		offset += uint32(dataSize)
	}

	l.HeaderSize = offset

	l.RecordSize = uint32(keySize) + uint32(dataSize)
	if useVarData {
		l.RecordSize += 4
	}

	if l.RecordSize > 0 && l.PageSize > l.HeaderSize {
		l.RecordsPerPage = (l.PageSize - l.HeaderSize) / l.RecordSize
	}

	return l
}

// IndexLayout is the fixed geometry of an index page: spec.md §3 fixes the
// header at 16 bytes (logical id, count, pad, first covered data page,
// reserved) regardless of configuration.
type IndexLayout struct {
	PageSize       uint32
	BitmapBytes    uint32
	EntriesPerPage uint32
}

func NewIndexLayout(pageSize uint32, bitmapBytes uint32) *IndexLayout {
	l := &IndexLayout{PageSize: pageSize, BitmapBytes: bitmapBytes}
	if bitmapBytes > 0 && pageSize > idxHeaderSize {
		l.EntriesPerPage = (pageSize - idxHeaderSize) / bitmapBytes
	}
	return l
}

// VarLayout is the fixed geometry of a variable page: a 4-byte logical id
// followed by a copy of the maximum key stored on the page (spec.md §3).
type VarLayout struct {
	PageSize   uint32
	KeySize    uint8
	HeaderSize uint32
}

func NewVarLayout(pageSize uint32, keySize uint8) *VarLayout {
	return &VarLayout{
		PageSize:   pageSize,
		KeySize:    keySize,
		HeaderSize: varHeaderBase + uint32(keySize),
	}
}
