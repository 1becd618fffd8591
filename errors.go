package embeddb

import "github.com/ubco-db/embeddb-go/internal/errs"

// Public error values, re-exported from internal/errs per SPEC_FULL.md §5
// so callers never import an internal package to use errors.Is.
var (
	ErrConfigInvalid     = errs.ErrConfigInvalid
	ErrOrderingViolation = errs.ErrOrderingViolation
	ErrVarDataDisabled   = errs.ErrVarDataDisabled
	ErrIndexDisabled     = errs.ErrIndexDisabled
	ErrNotFound          = errs.ErrNotFound
	ErrOverwritten       = errs.ErrOverwritten
	ErrIO                = errs.ErrIO
	ErrOutOfMemory       = errs.ErrOutOfMemory
	ErrPageCorrupt       = errs.ErrPageCorrupt
	ErrClosed            = errs.ErrClosed
)
