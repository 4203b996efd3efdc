package heap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/brk"
)

// DefaultReserve is the address range reserved for the process-wide heap.
const DefaultReserve = 1 << 30

// DefaultFallback is the size of the in-memory arena used when no range can
// be reserved.
const DefaultFallback = 64 << 20

// ErrInitialized is returned by Init once the process-wide heap exists.
var ErrInitialized = errors.New("heap: already initialized")

// Options configures the process-wide heap.
type Options struct {
	// Reserve is the reserved range on linux. 0 selects DefaultReserve.
	Reserve int

	// Fallback is the in-memory arena size used when reserving fails.
	// 0 selects DefaultFallback.
	Fallback int

	// NoReserve skips the reservation and always uses the in-memory arena.
	NoReserve bool

	// Alloc is passed to alloc.New.
	Alloc *alloc.Options
}

// Locked serializes every call into one allocator.
type Locked struct {
	mu sync.Mutex
	a  *alloc.Allocator
}

// NewLocked wraps a.
func NewLocked(a *alloc.Allocator) *Locked {
	return &Locked{a: a}
}

// Malloc calls alloc.Allocator.Malloc under the lock.
func (l *Locked) Malloc(size uint64) (alloc.Ptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Malloc(size)
}

// Calloc calls alloc.Allocator.Calloc under the lock.
func (l *Locked) Calloc(count, size uint64) (alloc.Ptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Calloc(count, size)
}

// Realloc calls alloc.Allocator.Realloc under the lock.
func (l *Locked) Realloc(p alloc.Ptr, size uint64) (alloc.Ptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Realloc(p, size)
}

// Free calls alloc.Allocator.Free under the lock.
func (l *Locked) Free(p alloc.Ptr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Free(p)
}

// Bytes returns the payload of p. The slice stays valid until p is released.
func (l *Locked) Bytes(p alloc.Ptr) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Bytes(p)
}

// UsableSize returns the payload capacity of p.
func (l *Locked) UsableSize(p alloc.Ptr) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.UsableSize(p)
}

// Stats returns a snapshot of the allocator counters.
func (l *Locked) Stats() alloc.Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Stats()
}

// Usage walks the heap and summarizes it.
func (l *Locked) Usage() (alloc.Usage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Usage()
}

var (
	defMu   sync.Mutex
	defHeap *Locked
)

// Init creates the process-wide heap with opts. It fails with ErrInitialized
// when the heap already exists.
func Init(opts *Options) error {
	defMu.Lock()
	defer defMu.Unlock()
	if defHeap != nil {
		return ErrInitialized
	}
	l, err := build(opts)
	if err != nil {
		return err
	}
	defHeap = l
	return nil
}

// Default returns the process-wide heap, creating it with default options on
// first use.
func Default() *Locked {
	defMu.Lock()
	defer defMu.Unlock()
	if defHeap == nil {
		l, err := build(nil)
		if err != nil {
			panic(err)
		}
		defHeap = l
	}
	return defHeap
}

func build(opts *Options) (*Locked, error) {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	if o.Reserve == 0 {
		o.Reserve = DefaultReserve
	}
	if o.Fallback == 0 {
		o.Fallback = DefaultFallback
	}
	if o.Reserve < 0 || o.Fallback < 0 {
		return nil, fmt.Errorf("heap: negative size (reserve=%d, fallback=%d)", o.Reserve, o.Fallback)
	}

	var b brk.Breaker
	if !o.NoReserve {
		if r, err := brk.NewReserved(o.Reserve); err == nil {
			b = r
		}
	}
	if b == nil {
		b = brk.NewSlice(o.Fallback)
	}
	if o.Alloc != nil {
		if err := o.Alloc.Validate(); err != nil {
			return nil, fmt.Errorf("heap: %w", err)
		}
	}
	return NewLocked(alloc.New(b, o.Alloc)), nil
}

// Malloc allocates size bytes from the process-wide heap.
func Malloc(size uint64) (alloc.Ptr, error) { return Default().Malloc(size) }

// Calloc allocates count*size zeroed bytes from the process-wide heap.
func Calloc(count, size uint64) (alloc.Ptr, error) { return Default().Calloc(count, size) }

// Realloc resizes p on the process-wide heap.
func Realloc(p alloc.Ptr, size uint64) (alloc.Ptr, error) { return Default().Realloc(p, size) }

// Free releases p to the process-wide heap.
func Free(p alloc.Ptr) error { return Default().Free(p) }

// Bytes returns the payload of p on the process-wide heap.
func Bytes(p alloc.Ptr) ([]byte, error) { return Default().Bytes(p) }
