package alloc

import (
	"errors"

	"github.com/joshuapare/heapkit/heap/region"
)

var (
	// ErrOutOfMemory indicates the request cannot be satisfied: it is too
	// large to encode, or the growth primitive refused more memory.
	ErrOutOfMemory = errors.New("alloc: out of memory")

	// ErrInvalidFree indicates a pointer that is not the payload of any block.
	ErrInvalidFree = errors.New("alloc: pointer not allocated by this heap")

	// ErrDoubleFree indicates a pointer whose block is already free.
	ErrDoubleFree = errors.New("alloc: block already free")

	// ErrCorrupt indicates a broken block chain or free-space index.
	ErrCorrupt = region.ErrCorrupt
)
