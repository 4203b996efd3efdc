// Package checked wraps an allocator with the bookkeeping needed to catch
// allocator bugs as they happen.
//
// Every pointer handed out is checked for alignment, for lying inside the
// heap and for not overlapping any other live allocation. Each allocation is
// filled with its own data byte so later corruption is detected, zeroed
// allocations are verified before they are filled, and resizing is checked
// to preserve the old contents. The growth primitive is wrapped so that new
// memory is poisoned and lowering the break over a live allocation fails.
//
// A Heap is what the named scenarios and heapctl run against.
package checked

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/brk"
)

// Backends accepted by Config.Backend.
const (
	BackendSlice    = "slice"
	BackendReserved = "reserved"
)

// DefaultBrkSize is the address space reserved for one heap.
const DefaultBrkSize = 128 << 20

// freedPoison is written over an allocation right before it is released.
const freedPoison = 0xff

// Config configures a Heap.
type Config struct {
	BrkSize   int    // bytes the break may move over; 0 selects DefaultBrkSize
	Backend   string // BackendSlice (default) or BackendReserved
	UseCalloc bool   // serve Alloc through Calloc
	NoPoison  bool   // leave fresh heap memory as the breaker returns it
	Alloc     *alloc.Options
	Logger    *slog.Logger
}

// Heap is an allocator plus the shadow state used to check it.
type Heap struct {
	cfg     Config
	a       *alloc.Allocator
	counter *brk.Counter
	closer  io.Closer
	log     *slog.Logger

	live  spanList
	freed []span // every allocation ever released, in release order
	zero  int    // zero-sized requests

	dataCnt   byte
	integrity bool
	shrinkErr error
}

// New creates a Heap with a fresh allocator.
func New(cfg Config) (*Heap, error) {
	if cfg.BrkSize == 0 {
		cfg.BrkSize = DefaultBrkSize
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendSlice
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	h := &Heap{cfg: cfg, log: cfg.Logger, integrity: true}

	var b brk.Breaker
	switch cfg.Backend {
	case BackendSlice:
		b = brk.NewSlice(cfg.BrkSize)
	case BackendReserved:
		r, err := brk.NewReserved(cfg.BrkSize)
		if err != nil {
			return nil, fmt.Errorf("checked: %w", err)
		}
		b, h.closer = r, r
	default:
		return nil, fmt.Errorf("checked: unknown backend %q", cfg.Backend)
	}

	h.counter = brk.NewCounter(b, &brk.CounterOptions{
		Poison:     !cfg.NoPoison,
		PoisonByte: brk.DefaultPoison,
		OnShrink:   h.checkShrink,
	})

	opts := alloc.Options{}
	if cfg.Alloc != nil {
		opts = *cfg.Alloc
	}
	if opts.Logger == nil {
		opts.Logger = cfg.Logger
	}
	h.a = alloc.New(h.counter, &opts)
	return h, nil
}

// Close releases the heap's memory.
func (h *Heap) Close() error {
	if h.closer == nil {
		return nil
	}
	return h.closer.Close()
}

// Allocator returns the allocator under test.
func (h *Heap) Allocator() *alloc.Allocator { return h.a }

// Counter returns the instrumented growth primitive.
func (h *Heap) Counter() *brk.Counter { return h.counter }

// Config returns the effective configuration.
func (h *Heap) Config() Config { return h.cfg }

// SetIntegrityCheck turns the full data check after every operation on or
// off. Long randomized runs switch it off and call CheckData at the end.
func (h *Heap) SetIntegrityCheck(on bool) { h.integrity = on }

// Live returns the number of live allocations.
func (h *Heap) Live() int { return h.live.len() }

// Alloc allocates size bytes. With UseCalloc an even size is requested as
// two elements of half the size.
func (h *Heap) Alloc(size uint64) (alloc.Ptr, error) {
	if h.cfg.UseCalloc {
		n := uint64(1)
		if size != 0 && size%2 == 0 {
			n, size = 2, size/2
		}
		return h.alloc(n, size, true)
	}
	return h.alloc(1, size, false)
}

// AllocArray allocates a zeroed array of n elements of size bytes.
func (h *Heap) AllocArray(n, size uint64) (alloc.Ptr, error) {
	return h.alloc(n, size, true)
}

func (h *Heap) alloc(n, size uint64, zeroed bool) (alloc.Ptr, error) {
	var p alloc.Ptr
	var err error
	if zeroed {
		p, err = h.a.Calloc(n, size)
	} else {
		p, err = h.a.Malloc(n * size)
	}
	return h.track(p, n*size, zeroed, err)
}

// track validates a freshly returned pointer and starts tracking it.
func (h *Heap) track(p alloc.Ptr, size uint64, zeroed bool, err error) (alloc.Ptr, error) {
	if err != nil {
		return alloc.Nil, fmt.Errorf("%w: %d bytes: %w", ErrAllocFailed, size, err)
	}
	if size == 0 {
		if p != alloc.Nil {
			if s, ok := h.live.overlap(uint64(p), uint64(p)+1); ok {
				return p, fmt.Errorf("%w: zero-sized result %#x inside %#x-%#x", ErrOverlap, p, s.lo, s.hi)
			}
		}
		h.zero++
		return p, h.afterOp()
	}
	if p == alloc.Nil {
		return p, fmt.Errorf("%w: %d bytes returned nil", ErrAllocFailed, size)
	}

	lo, hi := uint64(p), uint64(p)+size
	if lo%8 != 0 {
		return p, fmt.Errorf("%w: %#x", ErrMisaligned, p)
	}
	if err := h.inHeap(lo, hi); err != nil {
		return p, err
	}
	if s, ok := h.live.overlap(lo, hi); ok {
		return p, fmt.Errorf("%w: new %#x-%#x, live %#x-%#x", ErrOverlap, lo, hi, s.lo, s.hi)
	}

	buf := h.view(lo, hi)
	if zeroed {
		for i, b := range buf {
			if b != 0 {
				return p, fmt.Errorf("%w: byte %d of %#x is %#x", ErrNotZeroed, i, p, b)
			}
		}
	}

	s := span{lo: lo, hi: hi, data: h.nextData()}
	fillBytes(buf, s.data)
	h.live.insert(s)
	h.log.Debug("alloc", "ptr", lo, "size", size, "data", s.data)
	return p, h.afterOp()
}

// Realloc resizes p and checks that the retained prefix kept its contents.
func (h *Heap) Realloc(p alloc.Ptr, size uint64) (alloc.Ptr, error) {
	if p == alloc.Nil {
		np, err := h.a.Realloc(alloc.Nil, size)
		return h.track(np, size, false, err)
	}
	if size == 0 {
		return alloc.Nil, h.free(p, true)
	}

	old, ok := h.live.find(uint64(p))
	if !ok {
		return alloc.Nil, fmt.Errorf("%w: realloc of %#x", ErrUntracked, p)
	}
	if err := h.checkSpan(old); err != nil {
		return alloc.Nil, err
	}

	// The old span stops being live as far as the shrink hook is concerned:
	// a moving resize frees it, which may lower the break over it.
	h.live.remove(old.lo)
	np, err := h.a.Realloc(p, size)
	if err != nil {
		h.live.insert(old)
		return alloc.Nil, fmt.Errorf("%w: realloc %#x to %d bytes: %w", ErrAllocFailed, p, size, err)
	}
	if np != p {
		h.freed = append(h.freed, old)
	}
	if err := h.inHeap(uint64(np), uint64(np)+size); err != nil {
		return np, err
	}

	keep := min(old.size(), size)
	buf := h.view(uint64(np), uint64(np)+size)
	for i := range keep {
		if buf[i] != old.data {
			return np, fmt.Errorf("%w: realloc %#x -> %#x lost byte %d (%#x, want %#x)",
				ErrDataCorrupted, p, np, i, buf[i], old.data)
		}
	}
	return h.track(np, size, false, nil)
}

// Free releases p after checking its contents. Freed memory is overwritten
// before the allocator sees it.
func (h *Heap) Free(p alloc.Ptr) error {
	return h.free(p, false)
}

func (h *Heap) free(p alloc.Ptr, viaRealloc bool) error {
	release := h.a.Free
	if viaRealloc {
		release = func(p alloc.Ptr) error {
			_, err := h.a.Realloc(p, 0)
			return err
		}
	}

	if p == alloc.Nil {
		return release(p)
	}
	s, ok := h.live.find(uint64(p))
	if !ok {
		return fmt.Errorf("%w: free of %#x", ErrUntracked, p)
	}
	if err := h.checkSpan(s); err != nil {
		return err
	}
	h.live.remove(s.lo)
	fillBytes(h.view(s.lo, s.hi), freedPoison)
	h.freed = append(h.freed, s)

	if err := release(p); err != nil {
		return err
	}
	h.log.Debug("free", "ptr", s.lo, "size", s.size())
	return h.afterOp()
}

// CheckData verifies the contents of every live allocation and the heap's
// own invariants.
func (h *Heap) CheckData() error {
	if h.shrinkErr != nil {
		return h.shrinkErr
	}
	for _, s := range h.live.spans {
		if err := h.checkSpan(s); err != nil {
			return err
		}
	}
	return h.a.Check()
}

// Reused reports whether [p, p+size) shares bytes with any released allocation.
func (h *Heap) Reused(p alloc.Ptr, size uint64) bool {
	lo, hi := uint64(p), uint64(p)+max(size, 1)
	for _, s := range h.freed {
		if s.overlaps(lo, hi) {
			return true
		}
	}
	return false
}

// Ptrs returns the live allocations in address order.
func (h *Heap) Ptrs() []alloc.Ptr {
	out := make([]alloc.Ptr, len(h.live.spans))
	for i, s := range h.live.spans {
		out[i] = s.ptr()
	}
	return out
}

func (h *Heap) afterOp() error {
	if h.shrinkErr != nil {
		err := h.shrinkErr
		h.shrinkErr = nil
		return err
	}
	if !h.integrity {
		return nil
	}
	return h.CheckData()
}

func (h *Heap) inHeap(lo, hi uint64) error {
	r := h.a.Region()
	if int64(lo) < r.Start() || int64(hi) > r.End() {
		return fmt.Errorf("%w: %#x-%#x not in heap %#x-%#x", ErrOutsideHeap, lo, hi, r.Start(), r.End())
	}
	return nil
}

func (h *Heap) checkSpan(s span) error {
	r := h.a.Region()
	if int64(s.hi) > r.End() {
		return fmt.Errorf("%w: %#x-%#x beyond break %#x", ErrDataCorrupted, s.lo, s.hi, r.End())
	}
	for i, b := range h.view(s.lo, s.hi) {
		if b != s.data {
			return fmt.Errorf("%w: byte %d of %#x-%#x is %#x, want %#x", ErrDataCorrupted, i, s.lo, s.hi, b, s.data)
		}
	}
	return nil
}

// checkShrink is the breaker hook run before the break moves from `from`
// down to `to`.
func (h *Heap) checkShrink(from, to int64) error {
	if s, ok := h.live.overlap(uint64(to), uint64(from)); ok {
		err := fmt.Errorf("%w: break %#x -> %#x cuts %#x-%#x", ErrLiveShrink, from, to, s.lo, s.hi)
		h.shrinkErr = errors.Join(h.shrinkErr, err)
		return err
	}
	return nil
}

func (h *Heap) view(lo, hi uint64) []byte {
	return h.a.Region().Bytes()[lo:hi]
}

// nextData returns a per-allocation fill byte, never 0x00 or 0xff.
func (h *Heap) nextData() byte {
	h.dataCnt++
	if h.dataCnt == 0 || h.dataCnt == 0xff {
		h.dataCnt = 1
	}
	return h.dataCnt
}

func fillBytes(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}
