package alloc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/brk"
	"github.com/joshuapare/heapkit/heap/region"
	"github.com/joshuapare/heapkit/internal/format"
)

func Test_Grow_PageBatches(t *testing.T) {
	a, _ := newTestAllocator(t, 1<<20, nil)

	tests := []struct {
		need uint64
		want uint64
	}{
		{8, 4096},
		{4088, 4096},
		{4089, 8192},
		{4096, 8192},
		{10000, 12288},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, a.growBytes(tt.need), "need=%d", tt.need)
	}
}

func Test_Grow_MinGrowPages(t *testing.T) {
	a, c := newTestAllocator(t, 1<<20, &Options{MinGrowPages: 4})
	mustMalloc(t, a, 8)
	require.Equal(t, int64(4*format.PageSize), c.Stats().GrowBytes)
}

func Test_Grow_BatchesSmallAllocations(t *testing.T) {
	a, c := newTestAllocator(t, 1<<20, nil)

	var grows []uint64
	a.onGrow = func(n uint64) { grows = append(grows, n) }

	const k = 1000
	for range k {
		mustMalloc(t, a, 16)
	}
	st := c.Stats()
	require.Less(t, st.Increases, k/100, "growth must be batched")
	require.Equal(t, st.Increases, a.Stats().GrowCalls)
	require.Len(t, grows, st.Increases)
	for _, n := range grows {
		require.Equal(t, uint64(format.PageSize), n)
	}
	assertInvariants(t, a)
}

func Test_Grow_ExtendsFreeTail(t *testing.T) {
	a, _ := newTestAllocator(t, 1<<20, nil)
	p := mustMalloc(t, a, 1000)

	// The free tail (4096-1008 bytes) is too small; growth merges into it.
	q := mustMalloc(t, a, 4000)
	require.Equal(t, p+1008, q)
	require.Equal(t, 1, a.Stats().GrowMerges)
	assertInvariants(t, a)
}

// A free tail sitting in the recency cache must leave it when growth merges
// new pages into it and the merged block is handed out.
func Test_Grow_MergedTailLeavesCache(t *testing.T) {
	a, _ := newTestAllocator(t, 1<<20, nil)

	mustMalloc(t, a, 4000)
	b := mustMalloc(t, a, 40)
	require.NoError(t, a.Free(b))
	tail := a.Region().FreeTail()
	require.Equal(t, []region.Block{tail}, a.Index().Cached)
	assertInvariants(t, a)

	p := mustMalloc(t, a, 200)
	require.Equal(t, 1, a.Stats().GrowMerges)
	require.Equal(t, payloadOf(tail), p, "grown block starts at the old tail")
	require.NotContains(t, a.Index().Cached, tail)
	assertInvariants(t, a)

	q := mustMalloc(t, a, 8)
	require.Greater(t, uint64(q), uint64(p))
	assertInvariants(t, a)
}

// Free a small tail, outgrow it, allocate again: the heap must stay valid at
// every step, with and without trimming.
func Test_Grow_MergeThenAllocate(t *testing.T) {
	for _, opts := range []*Options{nil, {TrimThreshold: 1 << 20}, {NoTrim: true}} {
		a, _ := newTestAllocator(t, 1<<20, opts)

		keep := mustMalloc(t, a, 3000)
		small := mustMalloc(t, a, 24)
		require.NoError(t, a.Free(small))
		assertInvariants(t, a)

		big := mustMalloc(t, a, 6000)
		require.Equal(t, payloadOf(blockOf(small)), big)
		assertInvariants(t, a)

		for _, sz := range []uint64{8, 24, 1000} {
			mustMalloc(t, a, sz)
			assertInvariants(t, a)
		}
		require.NoError(t, a.Free(big))
		assertInvariants(t, a)
		require.NoError(t, a.Free(keep))
		assertInvariants(t, a)
	}
}

func Test_Trim_GivesBackTail(t *testing.T) {
	a, c := newTestAllocator(t, 1<<20, nil)

	head := mustMalloc(t, a, 64)
	var tail []Ptr
	for range 8 {
		tail = append(tail, mustMalloc(t, a, 1000))
	}
	end := a.Region().End()

	// Freeing everything but the last keeps the boundary: the free run is
	// not at the tail.
	for _, p := range tail[:len(tail)-1] {
		require.NoError(t, a.Free(p))
	}
	require.Zero(t, c.Stats().Decreases)
	require.Equal(t, end, a.Region().End())

	require.NoError(t, a.Free(tail[len(tail)-1]))
	require.Equal(t, 1, c.Stats().Decreases)
	require.Less(t, a.Region().End(), int64(tail[0]))
	require.Equal(t, region.NoBlock, a.Region().FreeTail(), "head is last and in use")
	require.Equal(t, region.NoBlock, a.Index().FirstFree)
	require.Empty(t, a.Index().Cached)
	assertInvariants(t, a)

	// Still works after the boundary moved down.
	p := mustMalloc(t, a, 5000)
	require.Greater(t, int64(p), int64(head))
	assertInvariants(t, a)
}

func Test_Trim_BelowThresholdKeepsPages(t *testing.T) {
	a, c := newTestAllocator(t, 1<<20, &Options{TrimThreshold: 3 * format.PageSize})
	p := mustMalloc(t, a, 100)
	require.NoError(t, a.Free(p))
	require.Zero(t, c.Stats().Decreases)
	require.Equal(t, int64(format.PageSize), a.Region().End())
	require.Equal(t, []region.Block{0}, a.Index().Cached)
	assertInvariants(t, a)
}

func Test_Trim_Disabled(t *testing.T) {
	a, c := newTestAllocator(t, 1<<20, &Options{NoTrim: true})
	p := mustMalloc(t, a, 10000)
	require.NoError(t, a.Free(p))
	require.Zero(t, c.Stats().Decreases)
}

func Test_Trim_RefusedShrinkKeepsBlock(t *testing.T) {
	veto := errors.New("vetoed")
	c := brk.NewCounter(brk.NewSlice(1<<20), &brk.CounterOptions{
		OnShrink: func(from, to int64) error { return veto },
	})
	a := New(c, nil)

	p := mustMalloc(t, a, 100)
	require.NoError(t, a.Free(p), "a refused shrink is not the caller's error")
	require.Equal(t, 1, a.Stats().ShrinkFailures)
	require.Equal(t, int64(format.PageSize), a.Region().End())
	require.Equal(t, []region.Block{0}, a.Index().Cached)
	assertInvariants(t, a)

	q := mustMalloc(t, a, 100)
	require.Equal(t, p, q)
	require.Equal(t, 1, c.Stats().Increases)
}
