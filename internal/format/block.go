package format

import (
	"fmt"

	"github.com/joshuapare/heapkit/internal/buf"
)

// Block represents a single block (free or in-use) within the heap.
//
// Block layout (little-endian):
//
//	Offset  Size  Description
//	0x00    8     Descriptor: free flag in bit 63, prev-free flag in bit 62,
//	              size in words below them. The size includes the header.
//	0x08    ...   Payload, owned by the caller while the block is in use.
//	size-8  8     Footer (free blocks only): copy of the descriptor.
type Block struct {
	Offset int  // Offset of the header relative to the start of the heap slice
	Size   int  // Total size including header
	Free   bool // True when the block is marked as free
	Data   []byte
}

// NextBlock decodes the block at off and returns it plus the offset of the
// following block. end bounds the walk (normally the heap boundary); a block
// that would extend past it is reported as truncated.
func NextBlock(b []byte, off, end int) (Block, int, error) {
	if end > len(b) {
		end = len(b)
	}
	if !buf.Has(b[:end], off, HeaderSize) {
		return Block{}, 0, fmt.Errorf("block at %d: %w", off, ErrTruncated)
	}
	if !IsAligned(uint64(off)) {
		return Block{}, 0, fmt.Errorf("block at %d: %w", off, ErrMisaligned)
	}
	d := Descriptor(buf.U64LE(b[off:]))
	if d.Units() == 0 {
		return Block{}, 0, fmt.Errorf("block at %d: %w", off, ErrZeroBlock)
	}
	size, ok := buf.MulOverflowSafe(int(d.Units()), WordSize)
	if !ok {
		return Block{}, 0, fmt.Errorf("block at %d: size overflow", off)
	}
	next, ok := buf.AddOverflowSafe(off, size)
	if !ok || next > end {
		return Block{}, 0, fmt.Errorf("block at %d (%d bytes) past boundary %d: %w",
			off, size, end, ErrTruncated)
	}
	return Block{
		Offset: off,
		Size:   size,
		Free:   d.Free(),
		Data:   b[off+HeaderSize : next],
	}, next, nil
}
