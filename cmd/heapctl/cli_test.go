package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/scenario"
)

const smallHeap = "4M"

func TestRunCommand(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantContain []string
	}{
		{
			name:        "single scenario",
			args:        []string{"run", "-m", smallHeap, "malloc-simple"},
			wantContain: []string{"ok   malloc-simple"},
		},
		{
			name:        "several scenarios share a heap",
			args:        []string{"run", "-m", smallHeap, "malloc-simple", "free-reuse-split", "realloc"},
			wantContain: []string{"malloc-simple", "free-reuse-split", "realloc"},
		},
		{
			name:        "stats",
			args:        []string{"run", "-m", smallHeap, "-s", "malloc-simple"},
			wantContain: []string{"Number of active heap objects: 5", "Size in bytes of active heap objects: 8,330", "Heap fragmentation:"},
		},
		{
			name:        "calloc",
			args:        []string{"run", "-m", smallHeap, "-c", "calloc", "realloc"},
			wantContain: []string{"ok   calloc", "ok   realloc"},
		},
		{
			name:        "hex brk size",
			args:        []string{"run", "-m", "0x400000", "batch"},
			wantContain: []string{"ok   batch"},
		},
		{
			name:    "unknown scenario",
			args:    []string{"run", "no-such-scenario"},
			wantErr: true,
		},
		{
			name:    "bad brk size",
			args:    []string{"run", "-m", "lots", "malloc-simple"},
			wantErr: true,
		},
		{
			name:    "bad backend",
			args:    []string{"run", "--backend", "mmap", "malloc-simple"},
			wantErr: true,
		},
		{
			name:    "heap too small",
			args:    []string{"run", "-m", "64K", "free-reuse"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execCLI(t, tt.args...)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err, "output: %s", out)
			for _, want := range tt.wantContain {
				require.Contains(t, out, want)
			}
		})
	}
}

func TestRunCommand_JSON(t *testing.T) {
	out, err := execCLI(t, "run", "-m", smallHeap, "--json", "-s", "malloc-simple", "locality")
	require.NoError(t, err)

	var report runReport
	assertJSON(t, out, &report)
	require.Len(t, report.Scenarios, 2)
	for _, s := range report.Scenarios {
		require.True(t, s.Passed, s.Name)
	}
	require.NotNil(t, report.Stats)
	require.Positive(t, report.Stats.Objects)
	require.Positive(t, report.Stats.HeapBytes)
}

func TestRunCommand_FreshKeepsGoing(t *testing.T) {
	out, err := execCLI(t, "run", "-m", "64K", "--fresh", "--json", "free-reuse", "malloc-simple")
	require.Error(t, err)

	var report runReport
	assertJSON(t, out, &report)
	require.Len(t, report.Scenarios, 2)
	require.False(t, report.Scenarios[0].Passed)
	require.NotEmpty(t, report.Scenarios[0].Error)
	require.True(t, report.Scenarios[1].Passed)
}

func TestRunCommand_Quiet(t *testing.T) {
	out, err := execCLI(t, "run", "-q", "-m", smallHeap, "malloc-zero")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestRunCommand_Language(t *testing.T) {
	out, err := execCLI(t, "run", "-m", smallHeap, "-s", "--lang", "de", "malloc-simple")
	require.NoError(t, err)
	require.Contains(t, out, "Size in bytes of active heap objects: 8.330")

	_, err = execCLI(t, "run", "-m", smallHeap, "--lang", "!!", "malloc-simple")
	require.Error(t, err)
}

func TestListCommand(t *testing.T) {
	out, err := execCLI(t, "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(scenario.Names()))
	require.True(t, strings.HasPrefix(lines[0], "malloc-simple"))

	out, err = execCLI(t, "list", "--json")
	require.NoError(t, err)
	var entries []struct {
		Name string `json:"name"`
		Help string `json:"help"`
	}
	assertJSON(t, out, &entries)
	require.Len(t, entries, len(scenario.Names()))
	require.NotEmpty(t, entries[0].Help)
}

func TestVersionCommand(t *testing.T) {
	out, err := execCLI(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "heapctl dev")
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("HEAPCTL_BRK_SIZE", "64K")
	_, err := execCLI(t, "run", "free-reuse")
	require.Error(t, err, "64K from the environment is too small for free-reuse")

	t.Setenv("HEAPCTL_BRK_SIZE", "4M")
	_, err = execCLI(t, "run", "malloc-simple")
	require.NoError(t, err)

	_, err = execCLI(t, "run", "-m", "4M", "malloc-simple")
	require.NoError(t, err)
}

func TestEnvDefaults_Invalid(t *testing.T) {
	t.Setenv("HEAPCTL_VERBOSE", "maybe")
	_, err := execCLI(t, "run", "malloc-simple")
	require.Error(t, err)
	require.Contains(t, err.Error(), "parsing environment variables")
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"4096", 4096, false},
		{"0x1000", 4096, false},
		{"010", 8, false},
		{"64K", 64 << 10, false},
		{"128M", 128 << 20, false},
		{"2g", 2 << 30, false},
		{"0", 0, false},
		{"", 0, true},
		{"M", 0, true},
		{"-1", 0, true},
		{"99999999999999999999G", 0, true},
		{"17179869184G", 0, true},
	}
	for _, tt := range tests {
		got, err := parseSize(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}
