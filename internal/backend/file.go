package backend

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// FileBackend implements FileInterface over a single *os.File, treated as a
// fixed-size region of pageCount pages of pageSize bytes each. It is the
// production backend, adapted from FlashLog's diskSegmentManager
// (segmentmanager/disk.go): same os.File lifecycle, same mutex-guarded
// single active handle, generalized from append-only segment rotation to
// random-access page-indexed reads and writes since the circular log above
// this layer (not the backend) owns wraparound.
type FileBackend struct {
	mu        sync.Mutex
	path      string
	f         *os.File
	pageSize  uint32
	pageCount uint32
}

// NewFileBackend returns a backend rooted at path. The file is not opened
// until Open is called, mirroring FlashLog's NewDiskSegmentManager deferring
// the actual os.Create/os.OpenFile to initialization.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Exists() bool {
	info, err := os.Stat(b.path)
	return err == nil && info.Size() > 0
}

func (b *FileBackend) Open(mode Mode, pageSize, pageCount uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pageSize = pageSize
	b.pageCount = pageCount

	var f *os.File
	var err error
	switch mode {
	case Truncate:
		f, err = os.Create(b.path)
	case OpenExisting:
		f, err = os.OpenFile(b.path, os.O_RDWR, 0o644)
	default:
		return fmt.Errorf("embeddb/backend: unknown open mode %d", mode)
	}
	if err != nil {
		return fmt.Errorf("embeddb/backend: open %s: %w", b.path, err)
	}
	b.f = f
	return nil
}

func (b *FileBackend) offset(pageIdx uint32) int64 {
	return int64(pageIdx) * int64(b.pageSize)
}

func (b *FileBackend) ReadPage(buf []byte, pageIdx uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pageIdx >= b.pageCount {
		return fmt.Errorf("embeddb/backend: page %d out of range (count %d)", pageIdx, b.pageCount)
	}
	if _, err := b.f.ReadAt(buf[:b.pageSize], b.offset(pageIdx)); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("embeddb/backend: short read at page %d: %w", pageIdx, err)
		}
		return fmt.Errorf("embeddb/backend: read page %d: %w", pageIdx, err)
	}
	return nil
}

func (b *FileBackend) WritePage(buf []byte, pageIdx uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pageIdx >= b.pageCount {
		return fmt.Errorf("embeddb/backend: page %d out of range (count %d)", pageIdx, b.pageCount)
	}
	if _, err := b.f.WriteAt(buf[:b.pageSize], b.offset(pageIdx)); err != nil {
		return fmt.Errorf("embeddb/backend: write page %d: %w", pageIdx, err)
	}
	return nil
}

func (b *FileBackend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.f == nil {
		return nil
	}
	if err := b.f.Sync(); err != nil {
		return fmt.Errorf("embeddb/backend: sync: %w", err)
	}
	return nil
}

func (b *FileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	if err != nil {
		return fmt.Errorf("embeddb/backend: close: %w", err)
	}
	return nil
}
