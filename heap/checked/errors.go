package checked

import "errors"

var (
	// ErrAllocFailed indicates the allocator refused a request the harness expected to succeed.
	ErrAllocFailed = errors.New("checked: allocation failed")

	// ErrMisaligned indicates a returned pointer that is not word aligned.
	ErrMisaligned = errors.New("checked: pointer not aligned")

	// ErrOutsideHeap indicates an allocation not inside [start, break).
	ErrOutsideHeap = errors.New("checked: allocation outside heap")

	// ErrOverlap indicates two live allocations share bytes.
	ErrOverlap = errors.New("checked: allocations overlap")

	// ErrNotZeroed indicates a zeroed allocation with a non-zero byte.
	ErrNotZeroed = errors.New("checked: calloc did not clear memory")

	// ErrDataCorrupted indicates a live allocation whose contents changed.
	ErrDataCorrupted = errors.New("checked: allocation data corrupted")

	// ErrUntracked indicates a pointer the harness never handed out.
	ErrUntracked = errors.New("checked: pointer not tracked")

	// ErrLiveShrink indicates the break was lowered over a live allocation.
	ErrLiveShrink = errors.New("checked: heap shrunk over live allocation")
)
