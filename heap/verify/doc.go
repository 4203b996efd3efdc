// Package verify provides validation functions for heap layouts.
// These helpers back Allocator.Check and are used throughout the tests to
// ensure heap invariants are maintained.
//
// # Overview
//
// Validation categories:
//   - Block chain: every descriptor advances the walk, the walk ends exactly
//     on the boundary, no zero-sized or misaligned block
//   - Coalescing: no two neighbouring blocks are both free
//   - Boundary tags: every free block ends with a footer equal to its
//     header, and every prev-free bit matches the block before it
//   - Tail: the recorded free tail is the last block when that block is
//     free, and NoBlock otherwise
//   - Free index: no free block lies before the left-most free pointer and
//     every cached block is a free block start
//
// # Quick Start
//
//	if err := verify.AllInvariants(a.Region(), a.Index()); err != nil {
//	    t.Fatalf("heap corrupted: %v", err)
//	}
//
// # ValidationError
//
// All validation functions return *ValidationError on failure:
//
//	type ValidationError struct {
//	    Type    string         // Error category (e.g., "BlockChain")
//	    Message string         // Human-readable description
//	    Offset  int64          // Heap offset where the error occurred (-1 if N/A)
//	    Details map[string]any // Additional context
//	}
//
// A ValidationError unwraps to region.ErrCorrupt, so callers can test it
// with errors.Is like any other corruption.
//
// # Related Packages
//
//   - github.com/joshuapare/heapkit/heap/region: Block chain walked here
//   - github.com/joshuapare/heapkit/heap/alloc: Allocator whose state is checked
package verify
