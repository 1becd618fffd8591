package page

import "encoding/binary"

// IndexLayout methods implement the index page format from spec.md §3/§6:
// [u32 logical_id][u16 count][u16 pad][u32 first_covered_data_page][u32 reserved]
// followed by count x bitmap.

func (l *IndexLayout) InitEmpty(buf []byte, firstCoveredDataPage uint32) {
	clear(buf[:l.PageSize])
	binary.LittleEndian.PutUint32(buf[8:12], firstCoveredDataPage)
}

func (l *IndexLayout) LogicalID(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[0:4])
}

func (l *IndexLayout) SetLogicalID(buf []byte, id uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], id)
}

func (l *IndexLayout) Count(buf []byte) uint16 {
	return binary.LittleEndian.Uint16(buf[4:6])
}

func (l *IndexLayout) setCount(buf []byte, n uint16) {
	binary.LittleEndian.PutUint16(buf[4:6], n)
}

func (l *IndexLayout) FirstCoveredDataPage(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[8:12])
}

func (l *IndexLayout) SetFirstCoveredDataPage(buf []byte, id uint32) {
	binary.LittleEndian.PutUint32(buf[8:12], id)
}

// AppendBitmap appends one data page's bitmap bytes to the index page,
// incrementing its count. Caller must ensure Count(buf) < EntriesPerPage.
func (l *IndexLayout) AppendBitmap(buf []byte, bm []byte) {
	n := l.Count(buf)
	off := idxHeaderSize + uint32(n)*l.BitmapBytes
	copy(buf[off:off+l.BitmapBytes], bm)
	l.setCount(buf, n+1)
}

// BitmapAt returns the bitmap bytes for the i-th data page covered by this
// index page (0-indexed relative to FirstCoveredDataPage).
func (l *IndexLayout) BitmapAt(buf []byte, i int) []byte {
	off := idxHeaderSize + uint32(i)*l.BitmapBytes
	return buf[off : off+l.BitmapBytes]
}
