package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitRun(t *testing.T) {
	tests := []struct {
		name     string
		run      Run
		need     uint64
		wantUsed Run
		wantRest Run
		wantOK   bool
	}{
		{
			name:     "exact fit",
			run:      Run{Off: 0, Len: 64, Free: true},
			need:     64,
			wantUsed: Run{Off: 0, Len: 64},
		},
		{
			name:     "slack of one header plus one word stays",
			run:      Run{Off: 0, Len: 80, Free: true},
			need:     64,
			wantUsed: Run{Off: 0, Len: 80},
		},
		{
			name:     "larger slack splits",
			run:      Run{Off: 32, Len: 88, Free: true},
			need:     64,
			wantUsed: Run{Off: 32, Len: 64},
			wantRest: Run{Off: 96, Len: 24, Free: true},
			wantOK:   true,
		},
		{
			name:     "need larger than run",
			run:      Run{Off: 0, Len: 32, Free: true},
			need:     64,
			wantUsed: Run{Off: 0, Len: 32},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			used, rest, ok := SplitRun(tt.run, tt.need)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.wantUsed, used)
			require.Equal(t, tt.wantRest, rest)
			if ok {
				require.Equal(t, tt.run.End(), rest.End(), "split must not change the total span")
			}
		})
	}
}

func TestCoalesceRuns(t *testing.T) {
	a := Run{Off: 0, Len: 32, Free: true}
	b := Run{Off: 32, Len: 64, Free: true}

	m, ok := CoalesceRuns(a, b)
	require.True(t, ok)
	require.Equal(t, Run{Off: 0, Len: 96, Free: true}, m)
	require.Equal(t, uint64(88), m.Payload())

	_, ok = CoalesceRuns(a, Run{Off: 40, Len: 64, Free: true})
	require.False(t, ok, "gap between runs")

	_, ok = CoalesceRuns(a, Run{Off: 32, Len: 64})
	require.False(t, ok, "used neighbour")

	_, ok = CoalesceRuns(b, a)
	require.False(t, ok, "wrong order")
}

func TestRunPayload(t *testing.T) {
	require.Zero(t, Run{Len: 8}.Payload())
	require.Equal(t, uint64(8), Run{Len: 16}.Payload())
}
