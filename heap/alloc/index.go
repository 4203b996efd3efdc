package alloc

import (
	"fmt"

	"github.com/joshuapare/heapkit/heap/region"
	"github.com/joshuapare/heapkit/internal/format"
)

// find returns a free block with at least need payload bytes, or NoBlock when
// the heap has to grow. The returned block is no longer in the recency cache.
func (a *Allocator) find(need uint64) (region.Block, error) {
	b, err := a.recent.take(func(b region.Block) (bool, error) {
		d, err := a.r.Header(b)
		if err != nil {
			return false, err
		}
		if !d.Free() {
			return false, fmt.Errorf("recency cache holds in-use block %d: %w", b, ErrCorrupt)
		}
		return d.PayloadSize() >= need, nil
	})
	if err != nil {
		return region.NoBlock, err
	}
	if b != region.NoBlock {
		a.stats.CacheHits++
		return b, nil
	}

	if b, err = a.scan(need); err != nil {
		return region.NoBlock, err
	}
	if b != region.NoBlock {
		a.stats.ScanHits++
		a.recent.forget(b)
	}
	return b, nil
}

// scan is the first-fit walk from firstFree. On the way it moves firstFree to
// the first free block it meets, or to NoBlock when it meets none.
func (a *Allocator) scan(need uint64) (region.Block, error) {
	seenFree := false
	for b := a.firstFree; b != region.NoBlock; {
		d, err := a.r.Header(b)
		if err != nil {
			return region.NoBlock, err
		}
		if d.Free() {
			if !seenFree {
				a.firstFree = b
				seenFree = true
			}
			if d.PayloadSize() >= need {
				return b, nil
			}
		}
		if b, err = a.r.Next(b); err != nil {
			return region.NoBlock, err
		}
	}
	if !seenFree {
		a.firstFree = region.NoBlock
	}
	return region.NoBlock, nil
}

// place marks the free block b in use for need payload bytes, splitting off
// the remainder when it is large enough. It returns the payload size granted.
func (a *Allocator) place(b region.Block, need uint64) (uint64, error) {
	d, err := a.r.Header(b)
	if err != nil {
		return 0, err
	}
	used, rest, split := SplitRun(Run{Off: int64(b), Len: d.Size(), Free: true}, need+format.HeaderSize)
	if split {
		if err := a.putFree(rest); err != nil {
			return 0, err
		}
		a.stats.SplitCount++
		// The consumed block may have been the left-most free one.
		if a.firstFree == b || a.firstFree == region.NoBlock || region.Block(rest.Off) < a.firstFree {
			a.firstFree = region.Block(rest.Off)
		}
	}
	if err := a.markUsed(b, d, used.Len); err != nil {
		return 0, err
	}
	return used.Payload(), nil
}

// markUsed rewrites b as an in-use block of size bytes. b keeps its own
// prev-free bit; the block after it learns that its predecessor is in use.
func (a *Allocator) markUsed(b region.Block, d format.Descriptor, size uint64) error {
	nd := format.EncodeBytes(size, false).WithPrevFree(d.PrevFree())
	if err := a.r.SetDescriptor(b, nd); err != nil {
		return err
	}
	if a.r.FreeTail() == b {
		a.r.SetFreeTail(region.NoBlock)
	}
	return a.setPrevFree(region.Block(int64(b)+int64(size)), false)
}

// setPrevFree updates the prev-free bit of the block at b. b at the boundary
// has no block to update.
func (a *Allocator) setPrevFree(b region.Block, free bool) error {
	if int64(b) >= a.r.End() {
		return nil
	}
	d, err := a.r.Header(b)
	if err != nil {
		return err
	}
	if d.PrevFree() == free {
		return nil
	}
	return a.r.SetDescriptor(b, d.WithPrevFree(free))
}

// shrinkInPlace trims the in-use block b down to need payload bytes when the
// excess is worth a block of its own. The remainder is merged with a free
// successor but is not offered to the recency cache.
func (a *Allocator) shrinkInPlace(b region.Block, d format.Descriptor, need uint64) error {
	used, rest, split := SplitRun(Run{Off: int64(b), Len: d.Size()}, need+format.HeaderSize)
	if !split {
		return nil
	}
	rest, err := a.mergeNext(rest)
	if err != nil {
		return err
	}
	if err := a.r.SetDescriptor(b, format.EncodeBytes(used.Len, false).WithPrevFree(d.PrevFree())); err != nil {
		return err
	}
	if err := a.putFree(rest); err != nil {
		return err
	}
	a.stats.SplitCount++
	if a.firstFree == region.NoBlock || region.Block(rest.Off) < a.firstFree {
		a.firstFree = region.Block(rest.Off)
	}
	return nil
}

// release frees the in-use block b, merging it with free neighbours, then
// either trims or caches the result.
func (a *Allocator) release(b region.Block, d format.Descriptor) error {
	run := Run{Off: int64(b), Len: d.Size(), Free: true}

	run, err := a.mergeNext(run)
	if err != nil {
		return err
	}

	if d.PrevFree() {
		prev, pd, err := a.freePrev(b)
		if err != nil {
			return err
		}
		if merged, ok := CoalesceRuns(Run{Off: int64(prev), Len: pd.Size(), Free: true}, run); ok {
			// The absorbed header keeps reading as free, so releasing b
			// again is still reported as a double free.
			if err := a.r.SetDescriptor(b, d.WithFree(true).WithPrevFree(false)); err != nil {
				return err
			}
			a.recent.forget(prev)
			a.stats.CoalesceBackward++
			run = merged
		}
	}

	if err := a.putFree(run); err != nil {
		return err
	}
	blk := region.Block(run.Off)
	if a.firstFree == region.NoBlock || blk < a.firstFree {
		a.firstFree = blk
	}

	if a.trimmable(run) && a.trim(run) {
		return nil
	}
	a.recent.push(blk)
	return nil
}

// mergeNext absorbs the block following run when it is free.
func (a *Allocator) mergeNext(run Run) (Run, error) {
	if run.End() >= a.r.End() {
		return run, nil
	}
	next := region.Block(run.End())
	nd, err := a.r.Header(next)
	if err != nil {
		return run, err
	}
	merged, ok := CoalesceRuns(run, Run{Off: int64(next), Len: nd.Size(), Free: nd.Free()})
	if !ok {
		return run, nil
	}
	a.recent.forget(next)
	a.stats.CoalesceForward++
	return merged, nil
}

// putFree writes run as a free block with its footer, flags the block after
// it and keeps the free tail in step.
func (a *Allocator) putFree(run Run) error {
	b := region.Block(run.Off)
	d := format.EncodeBytes(run.Len, true)
	if err := a.r.SetDescriptor(b, d); err != nil {
		return err
	}
	if err := a.r.PutFooter(b, d); err != nil {
		return err
	}
	if run.End() == a.r.End() {
		a.r.SetFreeTail(b)
		return nil
	}
	return a.setPrevFree(region.Block(run.End()), true)
}

// freePrev follows the footer in front of b to the free block before it.
func (a *Allocator) freePrev(b region.Block) (region.Block, format.Descriptor, error) {
	fd, err := a.r.Footer(b)
	if err != nil {
		return region.NoBlock, 0, fmt.Errorf("block %d: %w: %w", b, ErrCorrupt, err)
	}
	if !fd.Free() || fd.Units() < 2 || fd.Units() > uint64(int64(b)-a.r.Start())/format.WordSize {
		return region.NoBlock, 0, fmt.Errorf("block %d: footer %v: %w", b, fd, ErrCorrupt)
	}
	prev := region.Block(int64(b) - int64(fd.Size()))
	pd, err := a.r.Header(prev)
	if err != nil {
		return region.NoBlock, 0, fmt.Errorf("block %d: %w: %w", b, ErrCorrupt, err)
	}
	if pd != fd {
		return region.NoBlock, 0, fmt.Errorf("block %d: footer %v, header at %d is %v: %w", b, fd, prev, pd, ErrCorrupt)
	}
	return prev, pd, nil
}

// inspect checks, without walking the chain, that b is the header of an
// in-use block and returns its descriptor. A header that cannot describe a
// block is ErrInvalidFree and a free one is ErrDoubleFree. Neighbours that
// contradict the header are ErrCorrupt.
func (a *Allocator) inspect(b region.Block) (format.Descriptor, error) {
	if !a.r.Contains(b) {
		return 0, ErrInvalidFree
	}
	d, err := a.r.Header(b)
	if err != nil {
		return 0, ErrInvalidFree
	}
	if d.Units() < 2 || d.Units() > uint64(a.r.End()-int64(b))/format.WordSize {
		return 0, fmt.Errorf("header %v: %w", d, ErrInvalidFree)
	}
	if d.Free() {
		return 0, ErrDoubleFree
	}

	if next := int64(b) + int64(d.Size()); next < a.r.End() {
		nd, err := a.r.Header(region.Block(next))
		if err != nil {
			return 0, fmt.Errorf("block after %d: %w: %w", b, ErrCorrupt, err)
		}
		if nd.Units() == 0 || nd.Units() > uint64(a.r.End()-next)/format.WordSize {
			return 0, fmt.Errorf("block after %d: header %v: %w", b, nd, ErrCorrupt)
		}
		if nd.PrevFree() {
			return 0, fmt.Errorf("block after %d: claims a free predecessor: %w", b, ErrCorrupt)
		}
	}
	if d.PrevFree() {
		if _, _, err := a.freePrev(b); err != nil {
			return 0, err
		}
	}
	return d, nil
}
