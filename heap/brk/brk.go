// Package brk provides growth primitives for the heap: a single break that
// moves up or down over one linear range of memory.
//
// # Overview
//
// A Breaker is the only way the allocator obtains or returns memory. It
// behaves like the classic sbrk(2) call: Sbrk(delta) moves the break by delta
// bytes and reports where it was before. Memory below the break is readable
// and writable; memory above it is not part of the heap.
//
// # Implementations
//
// Slice: in-memory breaker over one pre-reserved backing array
//
//   - Never relocates, so payload slices stay valid across growth
//   - Re-exposed bytes are zeroed, like fresh pages from the kernel
//
// Reserved (linux): one PROT_NONE reservation with the break moved by mprotect
//
//   - Pages above the break are inaccessible
//   - Shrinking returns the pages to the kernel with MADV_DONTNEED
//
// Counter: instrumentation wrapper used by tests and the heapctl driver
//
//   - Counts increase and decrease calls
//   - Poisons newly exposed bytes
//   - Lets a hook veto a shrink that would cut into live data
//
// # Addresses
//
// Addresses are byte offsets into Bytes(). The start of the range is offset 0.
//
// # Thread Safety
//
// Breakers are not thread-safe.
package brk

import "errors"

var (
	// ErrNoMemory indicates the breaker refused to move the break upward.
	ErrNoMemory = errors.New("brk: cannot grow heap")

	// ErrUnderflow indicates a negative delta that would move the break below the start.
	ErrUnderflow = errors.New("brk: break below heap start")

	// ErrUnsupported indicates the breaker is not available on this platform.
	ErrUnsupported = errors.New("brk: unsupported on this platform")

	// ErrClosed indicates use of a breaker after Close.
	ErrClosed = errors.New("brk: breaker closed")
)

// Breaker moves a single break over one linear range of memory.
type Breaker interface {
	// Sbrk moves the break by delta bytes and returns the previous break.
	// A positive delta makes the new range readable and writable; a negative
	// delta relinquishes the excluded range. Sbrk(0) reports the current break.
	Sbrk(delta int64) (int64, error)

	// Bytes returns the addressable memory [0, break). The slice is only
	// valid until the next call to Sbrk that shrinks the break.
	Bytes() []byte
}

// nextBreak validates a move of the break from cur by delta within [0, max].
func nextBreak(cur, delta, max int64) (int64, error) {
	next := cur + delta
	if delta > 0 && next < cur {
		return cur, ErrNoMemory
	}
	if next < 0 {
		return cur, ErrUnderflow
	}
	if next > max {
		return cur, ErrNoMemory
	}
	return next, nil
}
