package fs

import (
	"github.com/pkg/errors"
)

// Errors are ordinary return values; no failure is fatal to the engine
// and every operation leaves the on-medium invariants intact.
var (
	// ErrOutOfRange means a chain operation was handed a block address
	// outside the data region.
	ErrOutOfRange = errors.New("block address out of range")

	// ErrMediumFull means the free chain is exhausted.
	ErrMediumFull = errors.New("no free blocks")

	// ErrFileTooLarge means a write ran into the per-file block budget.
	ErrFileTooLarge = errors.New("file exceeds block budget")

	// ErrNotFound means the table slot for the requested file is empty.
	ErrNotFound = errors.New("file not found")

	// ErrNullHandle means the handle does not reference a stored chain.
	ErrNullHandle = errors.New("null file handle")

	// ErrBadMode means the operation is not allowed by the handle mode.
	ErrBadMode = errors.New("operation not allowed by handle mode")

	// ErrClosed means the handle was already closed or aborted.
	ErrClosed = errors.New("file handle is closed")

	// ErrGeometry means the configured geometry does not fit the medium.
	ErrGeometry = errors.New("bad filesystem geometry")
)
