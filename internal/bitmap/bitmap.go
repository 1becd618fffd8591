// Package bitmap backs the engine's fixed-width per-page bitmaps (spec.md
// §4.1/§4.8) with github.com/bits-and-blooms/bitset instead of hand-rolled
// bit twiddling, and adds an optional bloom-backed existence prefilter
// (SPEC_FULL.md §2/§3.4) used purely as a one-sided "definitely absent"
// short-circuit on the read path.
package bitmap

import (
	"github.com/bits-and-blooms/bitset"
)

// Bitmap is a fixed-width bitmap, serialized to exactly WidthBytes() bytes
// in a page header. Width is in bits (1-64, per spec.md's data model).
type Bitmap struct {
	bits  *bitset.BitSet
	width uint
}

// New allocates an empty bitmap of the given bit width.
func New(width uint) *Bitmap {
	return &Bitmap{bits: bitset.New(width), width: width}
}

// FromBytes decodes a bitmap previously written by Bytes.
func FromBytes(width uint, buf []byte) *Bitmap {
	bm := New(width)
	n := WidthBytes(width)
	if len(buf) < n {
		return bm
	}
	for i := uint(0); i < width; i++ {
		byteIdx := i / 8
		bitIdx := i % 8
		if buf[byteIdx]&(1<<bitIdx) != 0 {
			bm.bits.Set(i)
		}
	}
	return bm
}

// WidthBytes returns the number of bytes needed to store width bits.
func WidthBytes(width uint) int {
	return int((width + 7) / 8)
}

// Bytes serializes the bitmap to its fixed-width byte encoding.
func (b *Bitmap) Bytes() []byte {
	out := make([]byte, WidthBytes(b.width))
	for i := uint(0); i < b.width; i++ {
		if b.bits.Test(i) {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}

// Set sets bit i (0-indexed from the low end).
func (b *Bitmap) Set(i uint) {
	if i < b.width {
		b.bits.Set(i)
	}
}

// Test reports whether bit i is set.
func (b *Bitmap) Test(i uint) bool {
	if i >= b.width {
		return false
	}
	return b.bits.Test(i)
}

// Or ORs other into b in place (used to merge a record's contribution into
// a page's running bitmap, and to merge a query bitmap into an iterator).
func (b *Bitmap) Or(other *Bitmap) {
	b.bits = b.bits.Union(other.bits)
}

// IntersectsAny reports whether b has any bit in common with query — the
// one-sided test spec.md §4.8 uses to decide whether a page can be skipped:
// a page is skippable only when this returns false (false positives allowed,
// false negatives forbidden).
func (b *Bitmap) IntersectsAny(query *Bitmap) bool {
	return b.bits.IntersectionCardinality(query.bits) > 0
}

// Clone returns an independent copy.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{bits: b.bits.Clone(), width: b.width}
}

// BucketBoundaries builds the three callbacks spec.md §6 calls
// updateBitmap/buildBitmapFromRange/inBitmap, bucketing a little-endian
// signed or unsigned integer data column (<=8 bytes) into len(bounds)+1
// half-open buckets delimited by bounds (ascending). This generalizes
// embedDB's fixed updateBitmapInt8/16/64FromRange family (original_source)
// into a single width-agnostic helper driven by a boundary slice instead of
// one hand-written function per integer width.
type BucketBoundaries struct {
	Bounds []int64
	Signed bool
}

func (bb BucketBoundaries) bucketOf(v int64) uint {
	for i, bound := range bb.Bounds {
		if v < bound {
			return uint(i)
		}
	}
	return uint(len(bb.Bounds))
}

func (bb BucketBoundaries) Width() uint {
	return uint(len(bb.Bounds) + 1)
}

// decode reads up to 8 little-endian bytes of data as a signed or unsigned
// value widened into an int64 accumulator, per spec.md §9's widening note.
func decode(data []byte, signed bool) int64 {
	var acc uint64
	for i, b := range data {
		if i >= 8 {
			break
		}
		acc |= uint64(b) << (8 * uint(i))
	}
	if !signed || len(data) >= 8 {
		return int64(acc)
	}
	signBit := uint64(1) << (uint(len(data))*8 - 1)
	if acc&signBit != 0 {
		acc |= ^uint64(0) << (uint(len(data)) * 8)
	}
	return int64(acc)
}

func (bb BucketBoundaries) Update(data []byte, bm *Bitmap) {
	bm.Set(bb.bucketOf(decode(data, bb.Signed)))
}

func (bb BucketBoundaries) BuildFromRange(minData, maxData []byte, bm *Bitmap) {
	lo := bb.bucketOf(decode(minData, bb.Signed))
	hi := bb.bucketOf(decode(maxData, bb.Signed))
	for i := lo; i <= hi; i++ {
		bm.Set(i)
	}
}

func (bb BucketBoundaries) In(data []byte, bm *Bitmap) bool {
	return bm.Test(bb.bucketOf(decode(data, bb.Signed)))
}
