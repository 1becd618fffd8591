package backend

import "fmt"

// MemoryBackend implements FileInterface over a plain in-process byte
// buffer. It exists purely for tests, the same role chirst-cdb's
// pager.newMemoryStorage plays opposite its file-backed storage — letting
// every test in this repo run without touching disk, which is the test
// tooling convention SPEC_FULL.md §1.4 calls for.
type MemoryBackend struct {
	pages     [][]byte
	pageSize  uint32
	pageCount uint32
	hadData   bool
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Exists() bool {
	return b.hadData
}

func (b *MemoryBackend) Open(mode Mode, pageSize, pageCount uint32) error {
	b.pageSize = pageSize
	if mode == Truncate || b.pages == nil {
		b.pageCount = pageCount
		b.pages = make([][]byte, pageCount)
		for i := range b.pages {
			b.pages[i] = make([]byte, pageSize)
		}
	}
	if mode == Truncate {
		b.hadData = false
	}
	return nil
}

func (b *MemoryBackend) ReadPage(buf []byte, pageIdx uint32) error {
	if pageIdx >= b.pageCount {
		return fmt.Errorf("embeddb/backend: page %d out of range (count %d)", pageIdx, b.pageCount)
	}
	copy(buf[:b.pageSize], b.pages[pageIdx])
	return nil
}

func (b *MemoryBackend) WritePage(buf []byte, pageIdx uint32) error {
	if pageIdx >= b.pageCount {
		return fmt.Errorf("embeddb/backend: page %d out of range (count %d)", pageIdx, b.pageCount)
	}
	copy(b.pages[pageIdx], buf[:b.pageSize])
	b.hadData = true
	return nil
}

func (b *MemoryBackend) Flush() error { return nil }
func (b *MemoryBackend) Close() error { return nil }
