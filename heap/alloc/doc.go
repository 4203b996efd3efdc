// Package alloc is a general purpose heap allocator that lives entirely on
// one growth primitive.
//
// # Overview
//
// The heap is a single contiguous range obtained from a brk.Breaker. It is
// carved into blocks, each one an 8-byte descriptor followed by its payload.
// The descriptor carries the free flag in its top bit, a prev-free flag below
// it and the total block size, in words, below both. Walking from the first
// block by those sizes lands exactly on the heap boundary. A free block also
// repeats its descriptor in its last word, the footer.
//
// # Operations
//
//   - Malloc(size): a payload of at least size bytes, word aligned
//   - Calloc(count, size): Malloc(count*size) with the payload zeroed
//   - Realloc(p, size): resize, in place when the block already fits
//   - Free(p): release, with double-free and invalid-free detection
//
// Pointers are payload offsets into the arena (see Ptr). Nil is returned for
// zero-sized requests and is always safe to Free.
//
// # Finding a Block
//
// A request is served, in order, from:
//
//  1. The recency cache: the last few released blocks, most recent first
//  2. A first-fit scan starting at the left-most free block
//  3. New pages from the growth primitive
//
// A block with more than one header plus one word of slack is split and the
// remainder stays free.
//
// # Releasing a Block
//
// Free and Realloc check a pointer against its own header and its immediate
// neighbours only, so their cost does not depend on the heap size. The block
// in front is reached through its footer when the prev-free flag says it is
// free.
//
// A released block is merged with its free neighbours on both sides. When the
// merged block is the last one in the heap and at least TrimThreshold bytes
// long, the boundary is moved down and the memory goes back to the system.
// Otherwise the block is pushed onto the recency cache.
//
// # Growth
//
// Growth is batched in whole pages (Options.PageSize, at least
// Options.MinGrowPages per call). New pages that follow a free tail block
// extend that block.
//
// # Usage Example
//
//	a := alloc.New(brk.NewSlice(64<<20), nil)
//
//	p, err := a.Malloc(128)
//	if err != nil {
//	    return err
//	}
//	buf, _ := a.Bytes(p)
//	copy(buf, "hello")
//
//	p, err = a.Realloc(p, 4096)
//	...
//	err = a.Free(p)
//
// # Thread Safety
//
// An Allocator is not thread-safe. pkg/heap wraps one behind a mutex.
//
// # Related Packages
//
//   - github.com/joshuapare/heapkit/heap/brk: Growth primitives
//   - github.com/joshuapare/heapkit/heap/region: Block chain and boundary
//   - github.com/joshuapare/heapkit/heap/verify: Heap invariant checks
//   - github.com/joshuapare/heapkit/internal/format: Descriptor codec
package alloc
