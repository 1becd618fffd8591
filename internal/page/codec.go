package page

import "encoding/binary"

// PutKey widens key into the low keySize bytes of buf, little-endian, per
// spec.md §9's widening note: callers always go through a zeroed 64-bit
// accumulator rather than assuming host endianness matches the on-disk
// format.
func PutKey(buf []byte, keySize uint8, key uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], key)
	copy(buf[:keySize], tmp[:keySize])
}

// GetKey reads a keySize-byte little-endian key back into a uint64
// accumulator.
func GetKey(buf []byte, keySize uint8) uint64 {
	var tmp [8]byte
	copy(tmp[:keySize], buf[:keySize])
	return binary.LittleEndian.Uint64(tmp[:])
}

func allOnes(keySize uint8) uint64 {
	if keySize >= 8 {
		return ^uint64(0)
	}
	return (uint64(1) << (8 * keySize)) - 1
}

// InitEmpty zeroes buf and stamps it as an empty data page: min key set to
// all-ones (so the first insert's min comparison always updates it, per
// spec.md §4.1) and every other header field zero.
func (l *Layout) InitEmpty(buf []byte) {
	clear(buf[:l.PageSize])
	if l.UseMinMax {
		PutKey(buf[l.MinKeyOffset:], l.KeySize, allOnes(l.KeySize))
	}
}

func (l *Layout) RecordCount(buf []byte) uint16 {
	return binary.LittleEndian.Uint16(buf[4:6])
}

func (l *Layout) setRecordCount(buf []byte, n uint16) {
	binary.LittleEndian.PutUint16(buf[4:6], n)
}

func (l *Layout) SetLogicalID(buf []byte, id uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], id)
}

func (l *Layout) LogicalID(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[0:4])
}

func (l *Layout) MinKey(buf []byte) uint64 {
	if !l.UseMinMax {
		return GetKey(buf[l.recordOffset(0):], l.KeySize)
	}
	return GetKey(buf[l.MinKeyOffset:], l.KeySize)
}

func (l *Layout) MaxKey(buf []byte) uint64 {
	if !l.UseMinMax {
		n := l.RecordCount(buf)
		if n == 0 {
			return 0
		}
		return GetKey(buf[l.recordOffset(int(n-1)):], l.KeySize)
	}
	return GetKey(buf[l.MaxKeyOffset:], l.KeySize)
}

func (l *Layout) recordOffset(slot int) uint32 {
	return l.HeaderSize + uint32(slot)*l.RecordSize
}

// WriteRecord writes the slot-th record (0-indexed, must be the current
// count to preserve the append-only sorted invariant) and increments the
// page's record count. varPtr is ignored unless UseVarData.
func (l *Layout) WriteRecord(buf []byte, slot int, key uint64, data []byte, varPtr uint32) {
	off := l.recordOffset(slot)
	PutKey(buf[off:], l.KeySize, key)
	copy(buf[off+uint32(l.KeySize):], data[:l.DataSize])
	if l.UseVarData {
		binary.LittleEndian.PutUint32(buf[off+uint32(l.KeySize)+uint32(l.DataSize):], varPtr)
	}
	if slot+1 > int(l.RecordCount(buf)) {
		l.setRecordCount(buf, uint16(slot+1))
	}
}

// ReadRecord returns the key, a view of the data bytes (valid only until
// the buffer is reused) and the variable pointer (NoVarPtr if disabled) of
// the slot-th record.
func (l *Layout) ReadRecord(buf []byte, slot int) (key uint64, data []byte, varPtr uint32) {
	off := l.recordOffset(slot)
	key = GetKey(buf[off:], l.KeySize)
	data = buf[off+uint32(l.KeySize) : off+uint32(l.KeySize)+uint32(l.DataSize)]
	varPtr = NoVarPtr
	if l.UseVarData {
		varPtr = binary.LittleEndian.Uint32(buf[off+uint32(l.KeySize)+uint32(l.DataSize):])
	}
	return
}

// UpdateMinMax folds key/data into the page's running min/max header
// fields. No-op when UseMinMax is false.
func (l *Layout) UpdateMinMax(buf []byte, key uint64, data []byte, dataLess func(a, b []byte) bool) {
	if !l.UseMinMax {
		return
	}
	if key < l.MinKey(buf) || l.RecordCount(buf) == 0 {
		PutKey(buf[l.MinKeyOffset:], l.KeySize, key)
	}
	if key > l.currentMaxKeyOrZero(buf) {
		PutKey(buf[l.MaxKeyOffset:], l.KeySize, key)
	}
	if dataLess == nil {
		return
	}
	minData := buf[l.MinDataOffset : l.MinDataOffset+uint32(l.DataSize)]
	maxData := buf[l.MaxDataOffset : l.MaxDataOffset+uint32(l.DataSize)]
	if l.RecordCount(buf) == 0 {
		copy(minData, data[:l.DataSize])
		copy(maxData, data[:l.DataSize])
		return
	}
	if dataLess(data, minData) {
		copy(minData, data[:l.DataSize])
	}
	if dataLess(maxData, data) {
		copy(maxData, data[:l.DataSize])
	}
}

func (l *Layout) currentMaxKeyOrZero(buf []byte) uint64 {
	if l.RecordCount(buf) == 0 {
		return 0
	}
	return GetKey(buf[l.MaxKeyOffset:], l.KeySize)
}

func (l *Layout) MinData(buf []byte) []byte {
	return buf[l.MinDataOffset : l.MinDataOffset+uint32(l.DataSize)]
}

func (l *Layout) MaxData(buf []byte) []byte {
	return buf[l.MaxDataOffset : l.MaxDataOffset+uint32(l.DataSize)]
}

func (l *Layout) Bitmap(buf []byte) []byte {
	return buf[l.BitmapOffset : l.BitmapOffset+l.BitmapBytes()]
}

// Search locates the slot holding key using the two-step algorithm from
// spec.md §4.1: a linear-interpolation guess seeds the binary search
// midpoint when it falls inside [0, count); otherwise, and whenever count
// <= 1 or the computed slope is zero, it falls through to a plain binary
// search over the full range. Returns (slot, true) on an exact hit.
func (l *Layout) Search(buf []byte, key uint64) (int, bool) {
	count := int(l.RecordCount(buf))
	if count == 0 {
		return 0, false
	}

	lo, hi := 0, count-1
	if count > 1 {
		minKey := l.MinKey(buf)
		maxKey := l.MaxKey(buf)
		if maxKey > minKey {
			slope := float64(maxKey-minKey) / float64(count-1)
			if slope != 0 && key >= minKey {
				guess := int(float64(key-minKey) / slope)
				if guess >= 0 && guess < count {
					return l.binarySearchFrom(buf, key, guess, 0, count-1)
				}
			}
		}
	}
	return l.binarySearchFrom(buf, key, (lo+hi)/2, lo, hi)
}

func (l *Layout) binarySearchFrom(buf []byte, key uint64, mid, lo, hi int) (int, bool) {
	for lo <= hi {
		k, _, _ := l.ReadRecord(buf, mid)
		switch {
		case k == key:
			return mid, true
		case k < key:
			lo = mid + 1
		default:
			hi = mid - 1
		}
		mid = (lo + hi) / 2
	}
	return 0, false
}
