// Package backend is the file backend interface from spec.md §4.2: an
// abstraction over page-aligned read/write/open/close/flush that lets the
// core issue one logical page per call without knowing whether the pages
// live on NOR/NAND flash, an SD card, or (in tests) memory. Modeled on
// FlashLog's segmentmanager.SegmentManager interface, generalized from
// append-only segment rotation to fixed-size random-access page I/O.
package backend

// Mode selects how Open treats an existing file.
type Mode int

const (
	// Truncate creates the file fresh, discarding any prior content.
	Truncate Mode = iota
	// OpenExisting opens a file that must already exist, preserving its
	// content so the engine can rehydrate from it.
	OpenExisting
)

// FileInterface is the capability the host must provide for each of the
// engine's three rings (data/index/var). All I/O is page-aligned; pageIdx
// is a physical, 0-based offset within the backend's fixed region. The core
// never assumes sub-page atomicity of a single WritePage call.
type FileInterface interface {
	// Open prepares the backend for use under the given mode. PageSize and
	// PageCount fix the backend's page geometry for its lifetime.
	Open(mode Mode, pageSize, pageCount uint32) error

	// ReadPage reads exactly pageSize bytes for physical page pageIdx into
	// buf. buf must be at least pageSize bytes.
	ReadPage(buf []byte, pageIdx uint32) error

	// WritePage writes exactly pageSize bytes from buf to physical page
	// pageIdx.
	WritePage(buf []byte, pageIdx uint32) error

	// Flush forces any buffered writes to stable storage.
	Flush() error

	// Close releases the backend's resources.
	Close() error

	// Exists reports whether the backend already has persisted content,
	// i.e. whether OpenExisting would find anything to rehydrate from. Used
	// by the engine at init to decide fresh-vs-rehydrate without requiring
	// the caller to track that separately (FlashLog's
	// segmentmanager.NewDiskSegmentManager makes the analogous fresh/rehydrate
	// decision by listing the segment directory at construction time).
	Exists() bool
}
