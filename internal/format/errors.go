package format

import "errors"

var (
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrZeroBlock indicates a descriptor whose size field is zero.
	ErrZeroBlock = errors.New("format: zero length block")
	// ErrMisaligned indicates an offset or size that is not word aligned.
	ErrMisaligned = errors.New("format: misaligned block")
)
