// Package heap exposes the allocator under the conventional process-wide
// names.
//
// # Overview
//
// The heap/alloc package is single-threaded and owns whatever Breaker it is
// given. This package packages one allocator per process behind a mutex and
// exposes it through package-level functions:
//
//	p, err := heap.Malloc(64)
//	if err != nil {
//	    return err
//	}
//	defer heap.Free(p)
//
//	buf, _ := heap.Bytes(p)
//	copy(buf, "hello")
//
// The allocator is created on first use. On linux it sits on a reserved
// address range (brk.Reserved); elsewhere, or when the reservation fails, it
// falls back to an in-memory brk.Slice of the same size.
//
// # Configuration
//
// Init configures the process-wide allocator and must run before any other
// call:
//
//	err := heap.Init(&heap.Options{
//	    Reserve: 256 << 20,
//	    Alloc:   &alloc.Options{TrimThreshold: 64 << 10},
//	})
//
// # Locked
//
// Locked is the type behind the package-level functions. It can also wrap an
// allocator built elsewhere:
//
//	l := heap.NewLocked(alloc.New(brk.NewSlice(1<<20), nil))
//	p, _ := l.Malloc(32)
//
// # Related Packages
//
//   - github.com/joshuapare/heapkit/heap/alloc: the allocator itself
//   - github.com/joshuapare/heapkit/heap/brk: growth primitives
package heap
