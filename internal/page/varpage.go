package page

import "encoding/binary"

// VarLayout methods implement the variable page format from spec.md §3/§6:
// [u32 logical_id][keySize max_key_on_page][stream bytes...]

func (l *VarLayout) InitEmpty(buf []byte, id uint32, maxKey uint64) {
	clear(buf[:l.PageSize])
	binary.LittleEndian.PutUint32(buf[0:4], id)
	PutKey(buf[4:], l.KeySize, maxKey)
}

func (l *VarLayout) LogicalID(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[0:4])
}

func (l *VarLayout) SetLogicalID(buf []byte, id uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], id)
}

func (l *VarLayout) MaxKey(buf []byte) uint64 {
	return GetKey(buf[4:], l.KeySize)
}

func (l *VarLayout) SetMaxKey(buf []byte, key uint64) {
	PutKey(buf[4:], l.KeySize, key)
}

// StreamStart is the byte offset where stream payload bytes begin, i.e.
// immediately after the page header.
func (l *VarLayout) StreamStart() uint32 {
	return l.HeaderSize
}
