package page

import "testing"

func TestNewLayoutScenario1Geometry(t *testing.T) {
	l := NewLayout(64, 4, 4, 0, false, false)
	if l.HeaderSize != 6 {
		t.Fatalf("HeaderSize = %d, want 6", l.HeaderSize)
	}
	if l.RecordSize != 8 {
		t.Fatalf("RecordSize = %d, want 8", l.RecordSize)
	}
	if l.RecordsPerPage != 7 {
		t.Fatalf("RecordsPerPage = %d, want 7", l.RecordsPerPage)
	}
}

func TestWriteReadRecordRoundTrip(t *testing.T) {
	l := NewLayout(64, 4, 4, 0, true, true)
	buf := make([]byte, l.PageSize)
	l.InitEmpty(buf)

	data := make([]byte, 4)
	data[0] = 42
	l.WriteRecord(buf, 0, 7, data, 0xAABBCCDD)
	l.UpdateMinMax(buf, 7, data, nil)

	key, d, vp := l.ReadRecord(buf, 0)
	if key != 7 {
		t.Fatalf("key = %d, want 7", key)
	}
	if d[0] != 42 {
		t.Fatalf("data[0] = %d, want 42", d[0])
	}
	if vp != 0xAABBCCDD {
		t.Fatalf("varPtr = %x, want AABBCCDD", vp)
	}
	if l.RecordCount(buf) != 1 {
		t.Fatalf("RecordCount = %d, want 1", l.RecordCount(buf))
	}
	if l.MinKey(buf) != 7 || l.MaxKey(buf) != 7 {
		t.Fatalf("min/max = %d/%d, want 7/7", l.MinKey(buf), l.MaxKey(buf))
	}
}

func TestInitEmptySentinelMinKey(t *testing.T) {
	l := NewLayout(64, 2, 2, 0, true, false)
	buf := make([]byte, l.PageSize)
	l.InitEmpty(buf)
	if got := GetKey(buf[l.MinKeyOffset:], l.KeySize); got != 0xFFFF {
		t.Fatalf("min key sentinel = %x, want FFFF", got)
	}
}

func TestSearchFindsEveryInsertedKey(t *testing.T) {
	l := NewLayout(64, 4, 4, 0, true, false)
	buf := make([]byte, l.PageSize)
	l.InitEmpty(buf)

	keys := []uint64{1, 3, 4, 9, 12}
	for i, k := range keys {
		d := make([]byte, 4)
		d[0] = byte(100 + i)
		l.WriteRecord(buf, i, k, d, NoVarPtr)
		l.UpdateMinMax(buf, k, d, nil)
	}

	for i, k := range keys {
		slot, ok := l.Search(buf, k)
		if !ok {
			t.Fatalf("Search(%d) missed", k)
		}
		if slot != i {
			t.Fatalf("Search(%d) = slot %d, want %d", k, slot, i)
		}
	}

	if _, ok := l.Search(buf, 5); ok {
		t.Fatalf("Search(5) unexpectedly hit a non-inserted key")
	}
}

func TestKeyWideningLittleEndian(t *testing.T) {
	buf := make([]byte, 8)
	PutKey(buf, 3, 0x0102)
	if buf[0] != 0x02 || buf[1] != 0x01 || buf[2] != 0x00 {
		t.Fatalf("PutKey did not encode little-endian: % x", buf[:3])
	}
	if got := GetKey(buf, 3); got != 0x0102 {
		t.Fatalf("GetKey round-trip = %x, want 102", got)
	}
}
