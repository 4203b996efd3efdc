package alloc

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/heapkit/heap/brk"
	"github.com/joshuapare/heapkit/heap/region"
	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
)

// Ptr is the address of a payload: its offset in the arena.
type Ptr uint64

// Nil is the null pointer. No payload ever lives at offset 0 because every
// payload follows a header.
const Nil Ptr = 0

// Allocator manages one heap.
type Allocator struct {
	r    *region.Region
	opts Options
	log  *slog.Logger

	// Free-space index
	recent recentCache

	// firstFree is a lower bound: no free block lies before it, but after a
	// cache hit took it unsplit it may itself be in use. NoBlock only when
	// no block is free.
	firstFree region.Block

	stats Stats

	// Test hook: called with the byte count before each growth (nil in production)
	onGrow func(bytes uint64)
}

// New creates an allocator on b. opts may be nil for defaults.
//
// An invalid PageSize is a configuration error and panics.
func New(b brk.Breaker, opts *Options) *Allocator {
	var o Options
	if opts != nil {
		o = *opts
	}
	o = o.withDefaults()
	if err := o.validate(); err != nil {
		panic(err)
	}
	return &Allocator{
		r:         region.New(b),
		opts:      o,
		log:       o.Logger,
		recent:    newRecentCache(o.RecentCap),
		firstFree: region.NoBlock,
	}
}

// Region exposes the underlying block chain.
func (a *Allocator) Region() *region.Region { return a.r }

// Options returns the effective options.
func (a *Allocator) Options() Options { return a.opts }

// Malloc returns a word-aligned payload of at least size bytes.
// A size of zero returns Nil and no error.
func (a *Allocator) Malloc(size uint64) (Ptr, error) {
	if size == 0 {
		return Nil, nil
	}
	a.stats.AllocCalls++
	if size > MaxAlloc {
		return Nil, fmt.Errorf("malloc(%d): exceeds %d: %w", size, MaxAlloc, ErrOutOfMemory)
	}
	need := format.AlignWord(size)

	b, err := a.find(need)
	if err != nil {
		return Nil, err
	}
	if b == region.NoBlock {
		a.stats.AllocSlowPath++
		if b, err = a.grow(need); err != nil {
			a.log.Warn("allocation failed", "size", size, "err", err)
			return Nil, fmt.Errorf("malloc(%d): %w", size, err)
		}
	}

	got, err := a.place(b, need)
	if err != nil {
		return Nil, err
	}
	a.stats.BytesAllocated += int64(got)
	return payloadOf(b), nil
}

// Calloc returns a zeroed payload for count elements of size bytes.
// Either operand being zero returns Nil and no error; a product that
// overflows is ErrOutOfMemory.
func (a *Allocator) Calloc(count, size uint64) (Ptr, error) {
	total, ok := buf.MulU64(count, size)
	if !ok {
		return Nil, fmt.Errorf("calloc(%d, %d): size overflow: %w", count, size, ErrOutOfMemory)
	}
	if total == 0 {
		return Nil, nil
	}
	p, err := a.Malloc(total)
	if err != nil {
		return Nil, err
	}
	data, err := a.payload(blockOf(p))
	if err != nil {
		return Nil, err
	}
	clear(data)
	return p, nil
}

// Realloc resizes the allocation at p.
//
// Nil behaves as Malloc and a size of zero frees p and returns Nil. A block
// whose payload already holds size bytes is kept (and split when the excess
// is large enough); otherwise the data moves to a new block and p is freed.
// If the new block cannot be obtained, p is left untouched.
func (a *Allocator) Realloc(p Ptr, size uint64) (Ptr, error) {
	if p == Nil {
		return a.Malloc(size)
	}
	if size == 0 {
		return Nil, a.Free(p)
	}

	b := blockOf(p)
	d, err := a.inspect(b)
	if err != nil {
		return Nil, a.usageError("realloc", p, err)
	}
	if size > MaxAlloc {
		return Nil, fmt.Errorf("realloc(%#x, %d): exceeds %d: %w", p, size, MaxAlloc, ErrOutOfMemory)
	}

	need := format.AlignWord(size)
	have := d.PayloadSize()
	if have >= need {
		a.stats.ReallocInPlace++
		if err := a.shrinkInPlace(b, d, need); err != nil {
			return Nil, err
		}
		return p, nil
	}

	np, err := a.Malloc(size)
	if err != nil {
		return Nil, err
	}
	dst, err := a.payload(blockOf(np))
	if err != nil {
		return Nil, err
	}
	src, err := a.payload(b)
	if err != nil {
		return Nil, err
	}
	copy(dst, src[:have])
	if err := a.Free(p); err != nil {
		return Nil, err
	}
	a.stats.ReallocMoved++
	return np, nil
}

// Free releases the allocation at p. Freeing Nil is a no-op. A pointer that
// is not the payload of a block is ErrInvalidFree; one whose block is already
// free is ErrDoubleFree. Validation reads only p's header and its immediate
// neighbours, so Free costs the same wherever p sits in the heap.
func (a *Allocator) Free(p Ptr) error {
	if p == Nil {
		return nil
	}
	a.stats.FreeCalls++

	b := blockOf(p)
	d, err := a.inspect(b)
	if err != nil {
		return a.usageError("free", p, err)
	}
	a.stats.BytesFreed += int64(d.PayloadSize())

	return a.release(b, d)
}

// Bytes returns the payload of the live allocation at p. The slice aliases
// heap memory and is valid until p is freed or reallocated.
//
// Bytes checks that p addresses an in-use header inside the heap but, unlike
// Free, does not cross-check the neighbouring blocks.
func (a *Allocator) Bytes(p Ptr) ([]byte, error) {
	b, err := a.liveBlock(p)
	if err != nil {
		return nil, err
	}
	return a.payload(b)
}

// UsableSize returns the payload capacity of the live allocation at p.
func (a *Allocator) UsableSize(p Ptr) (uint64, error) {
	b, err := a.liveBlock(p)
	if err != nil {
		return 0, err
	}
	d, err := a.r.Header(b)
	if err != nil {
		return 0, err
	}
	return d.PayloadSize(), nil
}

func (a *Allocator) liveBlock(p Ptr) (region.Block, error) {
	if p == Nil || !format.IsAligned(uint64(p)) || uint64(p) < format.HeaderSize {
		return region.NoBlock, fmt.Errorf("pointer %#x: %w", p, ErrInvalidFree)
	}
	b := blockOf(p)
	d, err := a.r.Header(b)
	if err != nil {
		return region.NoBlock, fmt.Errorf("pointer %#x: %w", p, ErrInvalidFree)
	}
	if d.Free() {
		return region.NoBlock, fmt.Errorf("pointer %#x: %w", p, ErrDoubleFree)
	}
	return b, nil
}

func (a *Allocator) payload(b region.Block) ([]byte, error) {
	return a.r.Payload(b)
}

func (a *Allocator) usageError(op string, p Ptr, err error) error {
	a.log.Error("heap usage error", "op", op, "ptr", uint64(p), "err", err)
	return fmt.Errorf("%s(%#x): %w", op, p, err)
}

func payloadOf(b region.Block) Ptr { return Ptr(int64(b) + format.HeaderSize) }

func blockOf(p Ptr) region.Block { return region.Block(int64(p) - format.HeaderSize) }
