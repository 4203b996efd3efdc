package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/brk"
	"github.com/joshuapare/heapkit/internal/format"
)

// newTestAllocator builds an allocator over a counting slice breaker.
func newTestAllocator(t testing.TB, max int, opts *Options) (*Allocator, *brk.Counter) {
	t.Helper()
	c := brk.NewCounter(brk.NewSlice(max), nil)
	return New(c, opts), c
}

// mustMalloc allocates size bytes and fails the test on error.
func mustMalloc(t testing.TB, a *Allocator, size uint64) Ptr {
	t.Helper()
	p, err := a.Malloc(size)
	require.NoError(t, err)
	require.NotEqual(t, Nil, p)
	require.Zero(t, uint64(p)%format.Alignment, "pointer %#x not aligned", p)
	return p
}

// fill writes v over the whole payload of p.
func fill(t testing.TB, a *Allocator, p Ptr, v byte) {
	t.Helper()
	data, err := a.Bytes(p)
	require.NoError(t, err)
	for i := range data {
		data[i] = v
	}
}

// assertInvariants checks the heap layout and free-space index.
func assertInvariants(t testing.TB, a *Allocator) {
	t.Helper()
	if err := a.Check(); err != nil {
		t.Fatalf("heap invariants violated: %v", err)
	}
}

// header returns the descriptor in front of p.
func header(t testing.TB, a *Allocator, p Ptr) format.Descriptor {
	t.Helper()
	d, err := a.Region().Header(blockOf(p))
	require.NoError(t, err)
	return d
}
