// Package region tracks the contiguous byte range a heap occupies and walks
// the chain of blocks inside it.
//
// A Region sits directly on a brk.Breaker. It knows where the first block
// starts, where the boundary currently is and, when the last block before the
// boundary is free, where that block starts. It never decides anything about allocation; it only
// moves the boundary when told to and reads or writes descriptors with a
// bounds check on every access.
//
// Offsets are absolute byte offsets into the breaker's Bytes().
package region

import (
	"fmt"

	"github.com/joshuapare/heapkit/heap/brk"
	"github.com/joshuapare/heapkit/internal/format"
)

// Block is the offset of a block header.
type Block int64

// NoBlock is the absent block.
const NoBlock Block = -1

// Region is the heap's range of memory.
type Region struct {
	b     brk.Breaker
	start int64 // offset of the first header; -1 until the first Grow
	end   int64 // current boundary

	freeTail Block // last block when it is free, otherwise NoBlock
}

// New creates a region over b. No memory is requested until the first Grow.
func New(b brk.Breaker) *Region {
	return &Region{b: b, start: -1, end: -1, freeTail: NoBlock}
}

// Initialized reports whether the region has obtained its start address.
func (r *Region) Initialized() bool { return r.start >= 0 }

// Start returns the offset of the first block, or -1 before initialization.
func (r *Region) Start() int64 { return r.start }

// End returns the current boundary, or -1 before initialization.
func (r *Region) End() int64 { return r.end }

// Size returns the number of bytes between start and boundary.
func (r *Region) Size() int64 {
	if !r.Initialized() {
		return 0
	}
	return r.end - r.start
}

// First returns the first block, or NoBlock when the region is empty.
func (r *Region) First() Block {
	if !r.Initialized() || r.start == r.end {
		return NoBlock
	}
	return Block(r.start)
}

// FreeTail returns the last block before the boundary when it is free, and
// NoBlock when the last block is in use or the region is empty.
func (r *Region) FreeTail() Block { return r.freeTail }

// SetFreeTail records b as the free block ending at the boundary, or clears
// the record with NoBlock. The caller is responsible for b actually being
// free and ending at the boundary.
func (r *Region) SetFreeTail(b Block) { r.freeTail = b }

// Bytes returns the whole arena. Offsets returned by the region index it.
func (r *Region) Bytes() []byte { return r.b.Bytes() }

// Breaker returns the growth primitive the region sits on.
func (r *Region) Breaker() brk.Breaker { return r.b }

// Grow moves the boundary up by n bytes and returns the offset of the new
// range, which becomes the free tail. n must be a positive multiple of the
// word size. The new range is not formatted; the caller writes it as a free
// block, possibly merged with the free tail that preceded it.
func (r *Region) Grow(n int64) (Block, error) {
	if n <= 0 || !format.IsAligned(uint64(n)) {
		return NoBlock, fmt.Errorf("grow by %d: %w", n, format.ErrMisaligned)
	}

	pad := int64(0)
	if !r.Initialized() {
		cur, err := r.b.Sbrk(0)
		if err != nil {
			return NoBlock, fmt.Errorf("grow: query break: %w", err)
		}
		pad = int64(format.AlignPage(uint64(cur), format.Alignment)) - cur
	}

	prev, err := r.b.Sbrk(pad + n)
	if err != nil {
		return NoBlock, fmt.Errorf("grow by %d: %w", n, err)
	}

	if !r.Initialized() {
		r.start = prev + pad
		r.end = r.start
	} else if prev != r.end {
		return NoBlock, fmt.Errorf("grow: break at %d, heap ends at %d: %w", prev, r.end, ErrForeignBreak)
	}

	blk := Block(r.end)
	r.end += n
	r.freeTail = blk
	return blk, nil
}

// Shrink moves the boundary down by n bytes. The boundary never goes below
// the start of the region. The free tail is left for the caller to update.
func (r *Region) Shrink(n int64) error {
	if !r.Initialized() {
		return fmt.Errorf("shrink by %d: region not initialized: %w", n, ErrBounds)
	}
	if n <= 0 || !format.IsAligned(uint64(n)) {
		return fmt.Errorf("shrink by %d: %w", n, format.ErrMisaligned)
	}
	if r.end-n < r.start {
		return fmt.Errorf("shrink by %d below start %d: %w", n, r.start, ErrBounds)
	}
	if _, err := r.b.Sbrk(-n); err != nil {
		return fmt.Errorf("shrink by %d: %w", n, err)
	}
	r.end -= n
	return nil
}

// Contains reports whether b could be a header inside the region.
func (r *Region) Contains(b Block) bool {
	return r.Initialized() &&
		int64(b) >= r.start &&
		int64(b)+format.HeaderSize <= r.end &&
		format.IsAligned(uint64(b))
}

// Header reads the descriptor of b.
func (r *Region) Header(b Block) (format.Descriptor, error) {
	if !r.Contains(b) {
		return 0, fmt.Errorf("header at %d (heap [%d, %d)): %w", b, r.start, r.end, ErrBounds)
	}
	return format.ReadDescriptor(r.b.Bytes(), int(b)), nil
}

// SetHeader writes a plain descriptor for b. size is the total size of the
// block in bytes, header included, and must keep the block inside the region.
func (r *Region) SetHeader(b Block, size uint64, free bool) error {
	if !r.Contains(b) {
		return fmt.Errorf("set header at %d (heap [%d, %d)): %w", b, r.start, r.end, ErrBounds)
	}
	if size < format.HeaderSize || !format.IsAligned(size) {
		return fmt.Errorf("set header at %d: size %d: %w", b, size, format.ErrMisaligned)
	}
	if size > uint64(r.end-int64(b)) {
		return fmt.Errorf("set header at %d: size %d past boundary %d: %w", b, size, r.end, ErrBounds)
	}
	return r.SetDescriptor(b, format.EncodeBytes(size, free))
}

// SetDescriptor writes d in front of b. The block d describes must lie
// inside the region.
func (r *Region) SetDescriptor(b Block, d format.Descriptor) error {
	if !r.Contains(b) {
		return fmt.Errorf("set header at %d (heap [%d, %d)): %w", b, r.start, r.end, ErrBounds)
	}
	if d.Units() == 0 || d.Units() > uint64(r.end-int64(b))/format.WordSize {
		return fmt.Errorf("set header at %d: %v past boundary %d: %w", b, d, r.end, ErrBounds)
	}
	format.PutDescriptor(r.b.Bytes(), int(b), d)
	return nil
}

// PutFooter copies d, the descriptor of the free block b, into the last word
// of that block.
func (r *Region) PutFooter(b Block, d format.Descriptor) error {
	if !r.Contains(b) || d.Size() < format.MinBlockSize || d.Units() > uint64(r.end-int64(b))/format.WordSize {
		return fmt.Errorf("footer of %v at %d (heap [%d, %d)): %w", d, b, r.start, r.end, ErrBounds)
	}
	format.PutDescriptor(r.b.Bytes(), int(int64(b)+int64(d.Size())-format.FooterSize), d)
	return nil
}

// Footer reads the word just before b: the footer of the block in front of
// b when that block is free.
func (r *Region) Footer(b Block) (format.Descriptor, error) {
	off := int64(b) - format.FooterSize
	if !r.Initialized() || off < r.start || int64(b) > r.end || !format.IsAligned(uint64(b)) {
		return 0, fmt.Errorf("footer before %d (heap [%d, %d)): %w", b, r.start, r.end, ErrBounds)
	}
	return format.ReadDescriptor(r.b.Bytes(), int(off)), nil
}

// Next returns the block following b, or NoBlock when b is the last block.
// A descriptor that cannot reach the boundary is reported as ErrCorrupt.
func (r *Region) Next(b Block) (Block, error) {
	_, next, err := r.decode(b)
	if err != nil {
		return NoBlock, err
	}
	if next == r.end {
		return NoBlock, nil
	}
	return Block(next), nil
}

// Payload returns the payload bytes of b.
func (r *Region) Payload(b Block) ([]byte, error) {
	blk, _, err := r.decode(b)
	if err != nil {
		return nil, err
	}
	return blk.Data, nil
}

// Walk calls fn for every block from the first to the last. It stops at the
// first error, either from fn or from a corrupt descriptor.
func (r *Region) Walk(fn func(Block, format.Descriptor) error) error {
	for b := r.First(); b != NoBlock; {
		_, next, err := r.decode(b)
		if err != nil {
			return err
		}
		d := format.ReadDescriptor(r.b.Bytes(), int(b))
		if err := fn(b, d); err != nil {
			return err
		}
		if next == r.end {
			break
		}
		b = Block(next)
	}
	return nil
}

func (r *Region) decode(b Block) (format.Block, int64, error) {
	if !r.Contains(b) {
		return format.Block{}, 0, fmt.Errorf("block at %d (heap [%d, %d)): %w", b, r.start, r.end, ErrBounds)
	}
	blk, next, err := format.NextBlock(r.b.Bytes(), int(b), int(r.end))
	if err != nil {
		return format.Block{}, 0, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return blk, int64(next), nil
}
