package heap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/brk"
)

// resetDefault drops the process-wide heap so a test can Init its own.
func resetDefault(t *testing.T) {
	t.Helper()
	defMu.Lock()
	defHeap = nil
	defMu.Unlock()
	t.Cleanup(func() {
		defMu.Lock()
		defHeap = nil
		defMu.Unlock()
	})
}

func TestHeap_PackageLevelRoundTrip(t *testing.T) {
	resetDefault(t)
	require.NoError(t, Init(&Options{NoReserve: true, Fallback: 1 << 20}))

	p, err := Malloc(64)
	require.NoError(t, err)
	require.NotEqual(t, alloc.Nil, p)

	buf, err := Bytes(p)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(buf), 64)
	copy(buf, "hello")

	p, err = Realloc(p, 4096)
	require.NoError(t, err)
	buf, err = Bytes(p)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:5]))

	z, err := Calloc(16, 8)
	require.NoError(t, err)
	zb, err := Bytes(z)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 128), zb[:128])

	require.NoError(t, Free(p))
	require.NoError(t, Free(z))
	require.NoError(t, Free(alloc.Nil))
	require.Error(t, Free(p), "second free is reported")
}

func TestHeap_InitTwice(t *testing.T) {
	resetDefault(t)
	require.NoError(t, Init(&Options{NoReserve: true, Fallback: 1 << 16}))
	require.ErrorIs(t, Init(nil), ErrInitialized)
}

func TestHeap_InitAfterDefault(t *testing.T) {
	resetDefault(t)
	defMu.Lock()
	defHeap = NewLocked(alloc.New(brk.NewSlice(1<<16), nil))
	defMu.Unlock()
	require.ErrorIs(t, Init(nil), ErrInitialized)
}

func TestHeap_InitRejectsBadOptions(t *testing.T) {
	resetDefault(t)
	err := Init(&Options{NoReserve: true, Fallback: 1 << 16, Alloc: &alloc.Options{PageSize: 3000}})
	require.Error(t, err)

	require.Error(t, Init(&Options{Reserve: -1}))

	require.NoError(t, Init(&Options{NoReserve: true, Fallback: 1 << 16}))
}

func TestHeap_FallbackExhaustion(t *testing.T) {
	resetDefault(t)
	require.NoError(t, Init(&Options{NoReserve: true, Fallback: 1 << 16}))

	_, err := Malloc(1 << 20)
	require.ErrorIs(t, err, alloc.ErrOutOfMemory)

	p, err := Malloc(100)
	require.NoError(t, err, "heap stays usable after exhaustion")
	require.NoError(t, Free(p))
}

func TestLocked_Concurrent(t *testing.T) {
	l := NewLocked(alloc.New(brk.NewSlice(8<<20), nil))

	const (
		workers = 8
		rounds  = 200
	)
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var held []alloc.Ptr
			for i := range rounds {
				p, err := l.Malloc(uint64(8 + (w*rounds+i)%200))
				if err != nil {
					errs <- err
					return
				}
				buf, err := l.Bytes(p)
				if err != nil {
					errs <- err
					return
				}
				buf[0] = byte(w)
				held = append(held, p)
				if i%3 == 0 {
					if err := l.Free(held[0]); err != nil {
						errs <- err
						return
					}
					held = held[1:]
				}
			}
			for _, p := range held {
				if err := l.Free(p); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("worker failed: %v", err)
	}

	u, err := l.Usage()
	require.NoError(t, err)
	require.Zero(t, u.UsedBlocks)
	require.Equal(t, l.Stats().AllocCalls, l.Stats().FreeCalls)
}

func TestLocked_UsableSize(t *testing.T) {
	l := NewLocked(alloc.New(brk.NewSlice(1<<16), nil))
	p, err := l.Malloc(10)
	require.NoError(t, err)
	n, err := l.UsableSize(p)
	require.NoError(t, err)
	require.Equal(t, uint64(16), n)
}
