package embeddb

import (
	"errors"
	"testing"

	"github.com/ubco-db/embeddb-go/internal/backend"
)

func TestValidateOptionsRejectsBadKeySize(t *testing.T) {
	opts := NewOptions(0, 4, 64, 8, 2)
	if _, err := New(backend.NewMemoryBackend(), nil, nil, opts); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("New with keySize=0 err = %v, want ErrConfigInvalid", err)
	}

	opts2 := NewOptions(9, 4, 64, 8, 2)
	if _, err := New(backend.NewMemoryBackend(), nil, nil, opts2); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("New with keySize=9 err = %v, want ErrConfigInvalid", err)
	}
}

func TestValidateOptionsRejectsMismatchedEraseGeometry(t *testing.T) {
	opts := NewOptions(4, 4, 64, 3, 2) // numDataPages not a multiple of eraseSizeInPages
	if _, err := New(backend.NewMemoryBackend(), nil, nil, opts); err == nil {
		t.Fatalf("New with incompatible ring geometry should fail")
	}
}

func TestValidateOptionsRequiresBitmapBoundsWhenIndexed(t *testing.T) {
	opts := NewOptions(4, 4, 64, 8, 2)
	opts.UseIndex = true
	opts.NumIndexPages = 8
	if _, err := New(backend.NewMemoryBackend(), backend.NewMemoryBackend(), nil, opts); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("New with UseIndex but nil BitmapBounds err = %v, want ErrConfigInvalid", err)
	}
}

func TestPutOnClosedEngineReturnsErrClosed(t *testing.T) {
	opts := NewOptions(4, 4, 64, 8, 2)
	e, err := New(backend.NewMemoryBackend(), nil, nil, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Put(1, u32le(1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("Put after Close err = %v, want ErrClosed", err)
	}
	if _, err := e.Get(1); !errors.Is(err, ErrClosed) {
		t.Fatalf("Get after Close err = %v, want ErrClosed", err)
	}
}

func TestChecksumDetectsPageCorruption(t *testing.T) {
	b := backend.NewMemoryBackend()
	opts := NewOptions(4, 4, 64, 8, 2)
	opts = opts.apply(WithChecksums())

	e, err := New(b, nil, nil, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := uint64(1); i <= 8; i++ {
		if err := e.Put(i, u32le(uint32(100+i))); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// Corrupt physical page 0 directly through the backend, bypassing the
	// engine, then force a read of it.
	corrupt := make([]byte, opts.PageSize)
	if err := b.ReadPage(corrupt, 0); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	corrupt[10] ^= 0xFF
	if err := b.WritePage(corrupt, 0); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	buf := make([]byte, opts.PageSize)
	if err := e.readRing(e.dataRing, buf, 0); !errors.Is(err, ErrPageCorrupt) {
		t.Fatalf("readRing over corrupted page err = %v, want ErrPageCorrupt", err)
	}
}
