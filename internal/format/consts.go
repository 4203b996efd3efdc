// Package format houses the low-level encoding of heap blocks: the descriptor
// word that precedes every block, and the alignment rules that every block
// size and payload address obey. It is deliberately independent from the
// allocator so the codec can be exercised without a live heap.
package format

const (
	// WordSize is the natural word of the heap. Every block size and every
	// payload address is a multiple of it.
	WordSize = 8

	// Alignment is the alignment guaranteed for payload addresses.
	Alignment = WordSize

	// AlignmentMask is the bitmask used for aligning to word boundaries (Alignment - 1).
	AlignmentMask = Alignment - 1

	// HeaderSize is the number of bytes used by the descriptor preceding
	// every block (free or in-use).
	HeaderSize = WordSize

	// PageSize is the default growth granularity of the heap.
	PageSize = 0x1000

	// PageMask is the bitmask used for aligning to page boundaries (PageSize - 1).
	PageMask = PageSize - 1

	// FlagBit is the bit position of the free flag inside a descriptor.
	FlagBit = 63

	// FreeFlag is the descriptor bit that marks a block as free.
	FreeFlag = uint64(1) << FlagBit

	// PrevFreeBit is the bit position of the prev-free flag.
	PrevFreeBit = 62

	// PrevFreeFlag marks a block whose predecessor is free. That predecessor
	// ends with a footer, a copy of its descriptor in its last word.
	PrevFreeFlag = uint64(1) << PrevFreeBit

	// UnitMask selects the size field (in words) of a descriptor.
	UnitMask = PrevFreeFlag - 1

	// FooterSize is the size of the boundary tag ending a free block.
	FooterSize = WordSize

	// MinBlockSize is the smallest block that carries a payload: one header
	// plus one word.
	MinBlockSize = HeaderSize + Alignment

	// SplitSlack is the leftover payload a block may carry without being
	// split. Anything larger becomes its own free block.
	SplitSlack = HeaderSize + Alignment
)
