package verify

import (
	"errors"
	"fmt"

	"github.com/joshuapare/heapkit/heap/region"
	"github.com/joshuapare/heapkit/internal/format"
)

// ValidationError describes one broken invariant.
type ValidationError struct {
	Type    string
	Message string
	Offset  int64
	Details map[string]any
}

func (e *ValidationError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset 0x%X: %s", e.Type, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap reports every validation failure as heap corruption.
func (e *ValidationError) Unwrap() error { return region.ErrCorrupt }

// Index is the free-space index state checked against the heap.
type Index struct {
	FirstFree region.Block   // left-most free lower bound, NoBlock when none is free
	Cached    []region.Block // recency cache entries, newest first
}

// AllInvariants validates the block chain, coalescing, boundary tags, the
// free tail and, when idx is non-nil, the free-space index. It returns the
// first error.
func AllInvariants(r *region.Region, idx *Index) error {
	if err := BlockChain(r); err != nil {
		return err
	}
	if err := Coalesced(r); err != nil {
		return err
	}
	if err := BoundaryTags(r); err != nil {
		return err
	}
	if err := Tail(r); err != nil {
		return err
	}
	if idx != nil {
		if err := FreeIndex(r, *idx); err != nil {
			return err
		}
	}
	return nil
}

// BlockChain validates that walking from the first block by descriptor
// sizes reaches exactly the boundary.
func BlockChain(r *region.Region) error {
	if !r.Initialized() {
		return nil
	}
	if !format.IsAligned(uint64(r.Start())) || !format.IsAligned(uint64(r.End())) {
		return &ValidationError{
			Type:    "BlockChain",
			Message: fmt.Sprintf("heap [%d, %d) not word aligned", r.Start(), r.End()),
			Offset:  -1,
		}
	}
	if r.End() < r.Start() {
		return &ValidationError{
			Type:    "BlockChain",
			Message: fmt.Sprintf("boundary %d below start %d", r.End(), r.Start()),
			Offset:  -1,
		}
	}

	var last region.Block = region.NoBlock
	var lastSize uint64
	err := r.Walk(func(b region.Block, d format.Descriptor) error {
		last, lastSize = b, d.Size()
		return nil
	})
	if err != nil {
		var off int64 = -1
		if last != region.NoBlock {
			off = int64(last) + int64(lastSize)
		} else if r.First() != region.NoBlock {
			off = int64(r.First())
		}
		return &ValidationError{
			Type:    "BlockChain",
			Message: err.Error(),
			Offset:  off,
		}
	}
	return nil
}

// Coalesced validates that no two neighbouring blocks are both free.
func Coalesced(r *region.Region) error {
	prevFree := false
	var prev region.Block = region.NoBlock
	return walk(r, "Coalesced", func(b region.Block, d format.Descriptor) error {
		if d.Free() && prevFree {
			return &ValidationError{
				Type:    "Coalesced",
				Message: fmt.Sprintf("free block follows free block at 0x%X", prev),
				Offset:  int64(b),
				Details: map[string]any{"prev": int64(prev)},
			}
		}
		prevFree, prev = d.Free(), b
		return nil
	})
}

// BoundaryTags validates that every free block ends with a copy of its
// descriptor and that every prev-free bit matches the block before it.
func BoundaryTags(r *region.Region) error {
	prevFree := false
	return walk(r, "BoundaryTags", func(b region.Block, d format.Descriptor) error {
		if d.PrevFree() != prevFree {
			return &ValidationError{
				Type:    "BoundaryTags",
				Message: fmt.Sprintf("prev-free bit is %t, previous block free is %t", d.PrevFree(), prevFree),
				Offset:  int64(b),
			}
		}
		if d.Free() {
			foot := int(int64(b) + int64(d.Size()) - format.FooterSize)
			if d.Size() < format.MinBlockSize {
				return &ValidationError{
					Type:    "BoundaryTags",
					Message: fmt.Sprintf("free block of %d bytes has no room for a footer", d.Size()),
					Offset:  int64(b),
				}
			}
			if fd := format.ReadDescriptor(r.Bytes(), foot); fd != d {
				return &ValidationError{
					Type:    "BoundaryTags",
					Message: fmt.Sprintf("footer %v does not match header %v", fd, d),
					Offset:  int64(b),
					Details: map[string]any{"footer": int64(foot)},
				}
			}
		}
		prevFree = d.Free()
		return nil
	})
}

// Tail validates the region's free tail: the last block when that block is
// free, NoBlock otherwise.
func Tail(r *region.Region) error {
	var last region.Block = region.NoBlock
	lastFree := false
	if err := walk(r, "Tail", func(b region.Block, d format.Descriptor) error {
		last, lastFree = b, d.Free()
		return nil
	}); err != nil {
		return err
	}
	want := region.NoBlock
	if lastFree {
		want = last
	}
	if r.FreeTail() != want {
		return &ValidationError{
			Type:    "Tail",
			Message: fmt.Sprintf("free tail recorded at %d, want %d", r.FreeTail(), want),
			Offset:  int64(r.FreeTail()),
			Details: map[string]any{"recorded": int64(r.FreeTail()), "actual": int64(last), "last_free": lastFree},
		}
	}
	return nil
}

// FreeIndex validates the left-most free pointer and the recency cache.
func FreeIndex(r *region.Region, idx Index) error {
	blocks := map[region.Block]bool{} // start -> free
	var firstFree region.Block = region.NoBlock
	if err := walk(r, "FreeIndex", func(b region.Block, d format.Descriptor) error {
		blocks[b] = d.Free()
		if d.Free() && firstFree == region.NoBlock {
			firstFree = b
		}
		return nil
	}); err != nil {
		return err
	}

	switch {
	case idx.FirstFree == region.NoBlock && firstFree != region.NoBlock:
		return &ValidationError{
			Type:    "FreeIndex",
			Message: "index claims no free block",
			Offset:  int64(firstFree),
		}
	case idx.FirstFree != region.NoBlock:
		if _, ok := blocks[idx.FirstFree]; !ok {
			return &ValidationError{
				Type:    "FreeIndex",
				Message: "left-most free pointer is not a block start",
				Offset:  int64(idx.FirstFree),
			}
		}
		if firstFree != region.NoBlock && firstFree < idx.FirstFree {
			return &ValidationError{
				Type:    "FreeIndex",
				Message: fmt.Sprintf("free block before left-most free pointer 0x%X", idx.FirstFree),
				Offset:  int64(firstFree),
			}
		}
	}

	seen := map[region.Block]bool{}
	for i, b := range idx.Cached {
		free, ok := blocks[b]
		if !ok || !free {
			return &ValidationError{
				Type:    "FreeIndex",
				Message: fmt.Sprintf("recency slot %d does not hold a free block", i),
				Offset:  int64(b),
				Details: map[string]any{"slot": i, "block_start": ok},
			}
		}
		if seen[b] {
			return &ValidationError{
				Type:    "FreeIndex",
				Message: fmt.Sprintf("block cached twice (slot %d)", i),
				Offset:  int64(b),
			}
		}
		seen[b] = true
	}
	return nil
}

func walk(r *region.Region, typ string, fn func(region.Block, format.Descriptor) error) error {
	err := r.Walk(fn)
	var verr *ValidationError
	if err == nil || errors.As(err, &verr) {
		return err
	}
	return &ValidationError{Type: typ, Message: err.Error(), Offset: -1}
}
