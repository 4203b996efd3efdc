package region

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/brk"
	"github.com/joshuapare/heapkit/internal/format"
)

func newRegion(t *testing.T, max int) *Region {
	t.Helper()
	return New(brk.NewSlice(max))
}

func Test_Region_LazyInit(t *testing.T) {
	r := newRegion(t, 1<<16)
	require.False(t, r.Initialized())
	require.Equal(t, NoBlock, r.First())
	require.Equal(t, NoBlock, r.FreeTail())
	require.Zero(t, r.Size())

	b, err := r.Grow(4096)
	require.NoError(t, err)
	require.True(t, r.Initialized())
	require.Equal(t, Block(0), b)
	require.Equal(t, int64(0), r.Start())
	require.Equal(t, int64(4096), r.End())
	require.Equal(t, b, r.FreeTail(), "new range is the free tail")
}

func Test_Region_StartAlignsForeignBreak(t *testing.T) {
	s := brk.NewSlice(1 << 16)
	_, err := s.Sbrk(13) // someone else used the first bytes
	require.NoError(t, err)

	r := New(s)
	b, err := r.Grow(4096)
	require.NoError(t, err)
	require.Equal(t, Block(16), b)
	require.Equal(t, int64(16), r.Start())
	require.Equal(t, int64(16+4096), r.End())
	require.Len(t, r.Bytes(), 16+4096)
}

func Test_Region_GrowDetectsForeignBreak(t *testing.T) {
	s := brk.NewSlice(1 << 16)
	r := New(s)
	_, err := r.Grow(4096)
	require.NoError(t, err)

	_, err = s.Sbrk(8)
	require.NoError(t, err)

	_, err = r.Grow(4096)
	require.ErrorIs(t, err, ErrForeignBreak)
}

func Test_Region_GrowRefused(t *testing.T) {
	r := newRegion(t, 4096)
	_, err := r.Grow(8192)
	require.ErrorIs(t, err, brk.ErrNoMemory)
	require.False(t, r.Initialized())

	_, err = r.Grow(12)
	require.ErrorIs(t, err, format.ErrMisaligned)
}

func Test_Region_WalkAndNext(t *testing.T) {
	r := newRegion(t, 1<<16)
	_, err := r.Grow(4096)
	require.NoError(t, err)

	require.NoError(t, r.SetHeader(0, 32, false))
	require.NoError(t, r.SetHeader(32, 64, true))
	require.NoError(t, r.SetHeader(96, 4096-96, false))
	r.SetFreeTail(NoBlock)

	var got []Block
	var free []bool
	err = r.Walk(func(b Block, d format.Descriptor) error {
		got = append(got, b)
		free = append(free, d.Free())
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []Block{0, 32, 96}, got)
	require.Equal(t, []bool{false, true, false}, free)

	next, err := r.Next(32)
	require.NoError(t, err)
	require.Equal(t, Block(96), next)

	next, err = r.Next(96)
	require.NoError(t, err)
	require.Equal(t, NoBlock, next)

	p, err := r.Payload(32)
	require.NoError(t, err)
	require.Len(t, p, 56)
}

func Test_Region_WalkStopsOnCallbackError(t *testing.T) {
	r := newRegion(t, 1<<16)
	_, err := r.Grow(4096)
	require.NoError(t, err)
	require.NoError(t, r.SetHeader(0, 16, false))
	require.NoError(t, r.SetHeader(16, 4096-16, true))

	stop := errors.New("stop")
	calls := 0
	err = r.Walk(func(Block, format.Descriptor) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, calls)
}

func Test_Region_CorruptDescriptor(t *testing.T) {
	r := newRegion(t, 1<<16)
	_, err := r.Grow(4096)
	require.NoError(t, err)
	require.NoError(t, r.SetHeader(0, 32, false))

	// Zero-sized descriptor: traversal cannot advance.
	format.PutDescriptor(r.Bytes(), 32, 0)
	_, err = r.Next(32)
	require.ErrorIs(t, err, ErrCorrupt)

	// Size stepping past the boundary.
	format.PutDescriptor(r.Bytes(), 32, format.EncodeBytes(8192, true))
	_, err = r.Next(32)
	require.ErrorIs(t, err, ErrCorrupt)
	require.ErrorIs(t, r.Walk(func(Block, format.Descriptor) error { return nil }), ErrCorrupt)
}

func Test_Region_HeaderBounds(t *testing.T) {
	r := newRegion(t, 1<<16)
	_, err := r.Header(0)
	require.ErrorIs(t, err, ErrBounds, "uninitialized region has no headers")

	_, err = r.Grow(4096)
	require.NoError(t, err)

	_, err = r.Header(4096)
	require.ErrorIs(t, err, ErrBounds)
	_, err = r.Header(-8)
	require.ErrorIs(t, err, ErrBounds)
	_, err = r.Header(12)
	require.ErrorIs(t, err, ErrBounds, "misaligned header")

	require.ErrorIs(t, r.SetHeader(4000, 200, true), ErrBounds)
	require.ErrorIs(t, r.SetHeader(0, 20, true), format.ErrMisaligned)
}

func Test_Region_Footer(t *testing.T) {
	r := newRegion(t, 1<<16)
	_, err := r.Footer(8)
	require.ErrorIs(t, err, ErrBounds, "uninitialized region has no footers")

	_, err = r.Grow(4096)
	require.NoError(t, err)

	d := format.EncodeBytes(64, true)
	require.NoError(t, r.SetDescriptor(32, d))
	require.NoError(t, r.PutFooter(32, d))
	require.NoError(t, r.SetDescriptor(96, format.EncodeBytes(4096-96, false).WithPrevFree(true)))

	got, err := r.Footer(96)
	require.NoError(t, err)
	require.Equal(t, d, got)
	require.Equal(t, d, format.ReadDescriptor(r.Bytes(), 88))

	_, err = r.Footer(0)
	require.ErrorIs(t, err, ErrBounds, "nothing precedes the first block")
	_, err = r.Footer(4104)
	require.ErrorIs(t, err, ErrBounds)

	require.ErrorIs(t, r.PutFooter(4000, format.EncodeBytes(200, true)), ErrBounds)
	require.ErrorIs(t, r.PutFooter(0, format.EncodeBytes(8, true)), ErrBounds, "header-only block has no room")
	require.ErrorIs(t, r.SetDescriptor(0, 0), ErrBounds)
	require.ErrorIs(t, r.SetDescriptor(4000, format.EncodeBytes(200, false)), ErrBounds)
}

func Test_Region_ShrinkNeverBelowStart(t *testing.T) {
	r := newRegion(t, 1<<16)
	require.ErrorIs(t, r.Shrink(4096), ErrBounds)

	_, err := r.Grow(8192)
	require.NoError(t, err)

	require.NoError(t, r.Shrink(4096))
	require.Equal(t, int64(4096), r.End())
	require.Len(t, r.Bytes(), 4096)

	require.ErrorIs(t, r.Shrink(8192), ErrBounds)
	require.Equal(t, int64(4096), r.End())

	require.NoError(t, r.Shrink(4096))
	require.Equal(t, r.Start(), r.End())
	require.Equal(t, NoBlock, r.First())
}
