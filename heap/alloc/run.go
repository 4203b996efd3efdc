package alloc

import "github.com/joshuapare/heapkit/internal/format"

// Run is a block described by position only: header offset, total length in
// bytes (header included) and free flag. Splitting and coalescing are
// computed on runs and then written back as descriptors.
type Run struct {
	Off  int64
	Len  uint64
	Free bool
}

// End returns the offset just past the run.
func (r Run) End() int64 { return r.Off + int64(r.Len) }

// Payload returns the payload bytes the run can hold.
func (r Run) Payload() uint64 {
	if r.Len <= format.HeaderSize {
		return 0
	}
	return r.Len - format.HeaderSize
}

// SplitRun carves a used run of need bytes (header included) off the front
// of run. When the leftover exceeds format.SplitSlack it becomes a free rest
// run and ok is true; otherwise used covers the whole of run and ok is false.
// need must not exceed run.Len.
func SplitRun(run Run, need uint64) (used, rest Run, ok bool) {
	if need > run.Len || run.Len-need <= format.SplitSlack {
		return Run{Off: run.Off, Len: run.Len}, Run{}, false
	}
	used = Run{Off: run.Off, Len: need}
	rest = Run{Off: run.Off + int64(need), Len: run.Len - need, Free: true}
	return used, rest, true
}

// CoalesceRuns merges b into a when both are free and b starts where a ends.
func CoalesceRuns(a, b Run) (Run, bool) {
	if !a.Free || !b.Free || a.End() != b.Off {
		return a, false
	}
	return Run{Off: a.Off, Len: a.Len + b.Len, Free: true}, true
}
