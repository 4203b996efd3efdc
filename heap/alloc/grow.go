package alloc

import (
	"fmt"

	"github.com/joshuapare/heapkit/heap/region"
	"github.com/joshuapare/heapkit/internal/format"
)

// growBytes returns the number of bytes one growth call requests for a block
// carrying need payload bytes: whole pages, never fewer than MinGrowPages.
func (a *Allocator) growBytes(need uint64) uint64 {
	pages := format.PagesFor(need+format.HeaderSize, a.opts.PageSize)
	pages = max(pages, a.opts.MinGrowPages)
	return pages * a.opts.PageSize
}

// grow extends the heap with one call to the growth primitive and returns a
// free block able to hold need payload bytes. When the current tail is free
// the new range extends it.
func (a *Allocator) grow(need uint64) (region.Block, error) {
	n := a.growBytes(need)
	if a.onGrow != nil {
		a.onGrow(n)
	}

	tail := a.r.FreeTail()
	blk, err := a.r.Grow(int64(n))
	if err != nil {
		return region.NoBlock, fmt.Errorf("grow by %d bytes: %w: %w", n, ErrOutOfMemory, err)
	}
	a.stats.GrowCalls++
	a.stats.GrowBytes += int64(n)

	run := Run{Off: int64(blk), Len: n, Free: true}
	if tail != region.NoBlock {
		td, err := a.r.Header(tail)
		if err != nil {
			return region.NoBlock, err
		}
		if merged, ok := CoalesceRuns(Run{Off: int64(tail), Len: td.Size(), Free: td.Free()}, run); ok {
			// place takes the grown block; it cannot stay cached.
			a.recent.forget(tail)
			run = merged
			a.stats.GrowMerges++
		}
	}
	if err := a.putFree(run); err != nil {
		return region.NoBlock, err
	}
	blk = region.Block(run.Off)
	if a.firstFree == region.NoBlock {
		a.firstFree = blk
	}

	a.log.Debug("heap grown",
		"bytes", n,
		"need", need,
		"end", a.r.End(),
		"block", int64(blk),
		"block_size", run.Len,
	)
	return blk, nil
}

func (a *Allocator) trimmable(run Run) bool {
	return !a.opts.NoTrim && run.End() == a.r.End() && run.Len >= a.opts.TrimThreshold
}

// trim gives the free tail block run back to the growth primitive. The block
// left last is in use, so there is no free tail afterwards. A refused shrink
// leaves run in the heap as a free block and is only logged.
func (a *Allocator) trim(run Run) bool {
	if err := a.r.Shrink(int64(run.Len)); err != nil {
		a.log.Warn("heap shrink failed", "bytes", run.Len, "end", a.r.End(), "err", err)
		a.stats.ShrinkFailures++
		return false
	}
	blk := region.Block(run.Off)
	a.recent.forget(blk)
	if a.firstFree == blk {
		a.firstFree = region.NoBlock
	}
	a.r.SetFreeTail(region.NoBlock)
	a.stats.ShrinkCalls++
	a.stats.ShrinkBytes += int64(run.Len)

	a.log.Debug("heap shrunk", "bytes", run.Len, "end", a.r.End())
	return true
}
