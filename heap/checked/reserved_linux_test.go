//go:build linux

package checked

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeap_ReservedBackend(t *testing.T) {
	h := newHeap(t, Config{Backend: BackendReserved, BrkSize: 1 << 20})

	p, err := h.Alloc(3000)
	require.NoError(t, err)
	q, err := h.Realloc(p, 9000)
	require.NoError(t, err)
	require.NoError(t, h.Free(q))
	require.NoError(t, h.CheckData())
	require.Zero(t, h.Stats().HeapBytes)
}
