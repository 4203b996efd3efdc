package region

import "errors"

var (
	// ErrCorrupt indicates a block whose descriptor cannot advance a walk to
	// the heap boundary. The layout past that point cannot be trusted.
	ErrCorrupt = errors.New("region: corrupt block chain")

	// ErrBounds indicates an offset or size outside [start, boundary).
	ErrBounds = errors.New("region: out of bounds")

	// ErrForeignBreak indicates the break was moved by someone else between
	// two growth calls, so new memory would not be contiguous with the heap.
	ErrForeignBreak = errors.New("region: break moved outside the heap")
)
