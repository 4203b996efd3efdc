package alloc

import (
	"github.com/joshuapare/heapkit/heap/region"
	"github.com/joshuapare/heapkit/internal/format"
)

// Stats holds allocator counters for testing and instrumentation.
type Stats struct {
	GrowCalls      int   // Growth primitive calls that moved the boundary up
	GrowBytes      int64 // Total bytes added by growth
	GrowMerges     int   // Growths that extended a free tail block
	ShrinkCalls    int   // Growth primitive calls that moved the boundary down
	ShrinkBytes    int64 // Total bytes given back
	ShrinkFailures int   // Shrinks refused by the growth primitive

	AllocCalls     int   // Non-zero Malloc calls (Calloc and Realloc included)
	CacheHits      int   // Allocations served from the recency cache
	ScanHits       int   // Allocations served by the first-fit scan
	AllocSlowPath  int   // Allocations that required growth
	BytesAllocated int64 // Payload bytes handed out
	FreeCalls      int   // Non-nil Free calls
	BytesFreed     int64 // Payload bytes released

	SplitCount       int // Blocks split in two
	CoalesceForward  int // Merges with the following block
	CoalesceBackward int // Merges with the preceding block

	ReallocInPlace int // Realloc calls that kept the block
	ReallocMoved   int // Realloc calls that moved the data
}

// Stats returns a snapshot of the counters.
func (a *Allocator) Stats() Stats { return a.stats }

// Usage describes the current heap layout.
type Usage struct {
	HeapBytes  int64  // Bytes between start and boundary
	Blocks     int    // Number of blocks
	UsedBlocks int    // Blocks in use
	UsedBytes  uint64 // Payload bytes held by blocks in use
	FreeBlocks int    // Free blocks
	FreeBytes  uint64 // Payload bytes held by free blocks
	MaxFree    uint64 // Largest free payload
}

// Overhead returns the bytes of heap that are not payload of a block in use.
func (u Usage) Overhead() int64 {
	return u.HeapBytes - int64(u.UsedBytes)
}

// Usage walks the heap and summarizes its layout.
func (a *Allocator) Usage() (Usage, error) {
	u := Usage{HeapBytes: a.r.Size()}
	err := a.r.Walk(func(_ region.Block, d format.Descriptor) error {
		u.Blocks++
		if d.Free() {
			u.FreeBlocks++
			u.FreeBytes += d.PayloadSize()
			u.MaxFree = max(u.MaxFree, d.PayloadSize())
		} else {
			u.UsedBlocks++
			u.UsedBytes += d.PayloadSize()
		}
		return nil
	})
	return u, err
}
