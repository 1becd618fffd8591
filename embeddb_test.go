package embeddb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ubco-db/embeddb-go/internal/backend"
	"github.com/ubco-db/embeddb-go/internal/bitmap"
)

func u32le(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

// Scenario 1 (spec.md §8.1): keySize=4, dataSize=4, pageSize=64,
// recordSize=8, headerSize=6, recordsPerPage=7. Insert (k=i, d=100+i) for
// i=1..20 and check boundary Get results.
func TestScenario1BasicPutGet(t *testing.T) {
	opts := NewOptions(4, 4, 64, 8, 2)
	e, err := New(backend.NewMemoryBackend(), nil, nil, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	if e.dataLayout.HeaderSize != 6 || e.dataLayout.RecordSize != 8 || e.dataLayout.RecordsPerPage != 7 {
		t.Fatalf("geometry = header %d record %d perPage %d, want 6/8/7",
			e.dataLayout.HeaderSize, e.dataLayout.RecordSize, e.dataLayout.RecordsPerPage)
	}

	for i := uint64(1); i <= 20; i++ {
		if err := e.Put(i, u32le(uint32(100+i))); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}

	if d, err := e.Get(10); err != nil || binary.LittleEndian.Uint32(d) != 110 {
		t.Fatalf("Get(10) = (%v, %v), want (110, nil)", d, err)
	}
	if d, err := e.Get(20); err != nil || binary.LittleEndian.Uint32(d) != 120 {
		t.Fatalf("Get(20) = (%v, %v), want (120, nil)", d, err)
	}
	if _, err := e.Get(21); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(21) err = %v, want ErrNotFound", err)
	}
	if _, err := e.Get(0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(0) err = %v, want ErrNotFound", err)
	}
}

// Scenario 2 (spec.md §8.2): bitmap secondary index pushdown. A query range
// of [30,40] over records (k=5,d=35) and (k=6,d=200) must return exactly
// (5,35).
func TestScenario2IteratorBitmapPushdown(t *testing.T) {
	bounds := &bitmap.BucketBoundaries{Bounds: []int64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}}
	opts := NewOptions(4, 4, 64, 8, 2)
	opts = opts.apply(WithIndex(8, bounds))

	e, err := New(backend.NewMemoryBackend(), backend.NewMemoryBackend(), nil, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	if err := e.Put(5, u32le(35)); err != nil {
		t.Fatalf("Put(5,35): %v", err)
	}
	if err := e.Put(6, u32le(200)); err != nil {
		t.Fatalf("Put(6,200): %v", err)
	}

	it, err := e.NewIterator(WithDataRange(u32le(30), u32le(40)))
	if err != nil {
		t.Fatalf("NewIterator: %v", err)
	}

	k, d, ok, err := it.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ok {
		t.Fatalf("Next returned ok=false, want the (5,35) record")
	}
	if k != 5 || binary.LittleEndian.Uint32(d) != 35 {
		t.Fatalf("Next = (%d, %d), want (5, 35)", k, binary.LittleEndian.Uint32(d))
	}

	if _, _, ok, err := it.Next(); err != nil || ok {
		t.Fatalf("second Next = (ok=%v, err=%v), want ok=false (only one matching record)", ok, err)
	}
}

// Scenario 3 (spec.md §8.3): a variable payload whose length prefix and
// body straddle var-page boundaries must round-trip exactly. pageSize=16
// forces the straddle (header=8, 8 content bytes/page, 20 total bytes to
// write) the way the spec's 64-byte-page example intends at a larger scale.
func TestScenario3VarDataStraddlesPageBoundary(t *testing.T) {
	opts := NewOptions(4, 1, 16, 4, 1)
	opts = opts.apply(WithVarData(4))

	e, err := New(backend.NewMemoryBackend(), nil, backend.NewMemoryBackend(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	payload := []byte("HELLO WORLD!!!!!")
	if len(payload) != 16 {
		t.Fatalf("test payload length = %d, want 16", len(payload))
	}

	if err := e.PutVar(1, []byte{0}, payload); err != nil {
		t.Fatalf("PutVar: %v", err)
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	_, got, err := e.GetVar(1)
	if err != nil {
		t.Fatalf("GetVar(1): %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("GetVar(1) payload = %q, want %q", got, payload)
	}

	_, stream, err := e.StreamRead(1)
	if err != nil {
		t.Fatalf("StreamRead(1): %v", err)
	}
	if stream.Len() != 16 {
		t.Fatalf("stream.Len() = %d, want 16", stream.Len())
	}
	buf := make([]byte, 16)
	n, err := stream.Read(buf)
	if err != nil {
		t.Fatalf("stream.Read: %v", err)
	}
	if n != 16 || !bytes.Equal(buf, payload) {
		t.Fatalf("stream.Read returned (%d, %q), want (16, %q)", n, buf, payload)
	}
}

// Scenario 4 (spec.md §8.4): ring eviction. With numDataPages=4,
// eraseSizeInPages=2, recordsPerPage=4, inserting 20 keys must evict key 1
// while retaining key 20.
func TestScenario4RingWrapEvictsOldestKeys(t *testing.T) {
	// headerSize=6 and recordSize=8 (keySize 4 + dataSize 4) with
	// pageSize=38 give recordsPerPage = (38-6)/8 = 4 exactly.
	opts := NewOptions(4, 4, 38, 4, 2)
	e, err := New(backend.NewMemoryBackend(), nil, nil, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	if e.dataLayout.RecordsPerPage != 4 {
		t.Fatalf("RecordsPerPage = %d, want 4", e.dataLayout.RecordsPerPage)
	}

	for i := uint64(1); i <= 20; i++ {
		if err := e.Put(i, u32le(uint32(100+i))); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	// Flush to write the buffered final group (keys 17-20) as a fifth
	// page, which pushes total pages written past the ring's 4-page
	// capacity and triggers the first erase-block eviction.
	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if e.dataRing.MinLogicalID() < 2 {
		t.Fatalf("MinLogicalID = %d, want >= 2 after eviction", e.dataRing.MinLogicalID())
	}
	if _, err := e.Get(1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(1) err = %v, want ErrNotFound", err)
	}
	if d, err := e.Get(20); err != nil || binary.LittleEndian.Uint32(d) != 120 {
		t.Fatalf("Get(20) = (%v, %v), want (120, nil)", d, err)
	}
}

// Scenario 5 (spec.md §8.5): rehydration. Closing and reopening in
// OpenExisting mode over the same backends must recover the same
// retrievable state.
func TestScenario5RehydrateRebuildsSpline(t *testing.T) {
	dataBackend := backend.NewMemoryBackend()
	opts := NewOptions(4, 4, 64, 8, 2)

	e, err := New(dataBackend, nil, nil, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := uint64(1); i <= 20; i++ {
		if err := e.Put(i, u32le(uint32(100+i))); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	e2, err := Open(dataBackend, nil, nil, opts)
	if err != nil {
		t.Fatalf("Open (rehydrate): %v", err)
	}
	defer e2.Close()

	if d, err := e2.Get(10); err != nil || binary.LittleEndian.Uint32(d) != 110 {
		t.Fatalf("rehydrated Get(10) = (%v, %v), want (110, nil)", d, err)
	}
}

// Scenario 6 (spec.md §8.6): a Put with a key not strictly greater than the
// last accepted key is rejected and leaves prior state untouched.
func TestScenario6OrderingViolationLeavesStateUntouched(t *testing.T) {
	opts := NewOptions(4, 4, 64, 8, 2)
	e, err := New(backend.NewMemoryBackend(), nil, nil, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	for i := uint64(1); i <= 20; i++ {
		if err := e.Put(i, u32le(uint32(100+i))); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}

	if err := e.Put(10, u32le(999)); !errors.Is(err, ErrOrderingViolation) {
		t.Fatalf("Put(10, 999) err = %v, want ErrOrderingViolation", err)
	}

	if d, err := e.Get(10); err != nil || binary.LittleEndian.Uint32(d) != 110 {
		t.Fatalf("Get(10) after rejected overwrite = (%v, %v), want (110, nil) unchanged", d, err)
	}
}
