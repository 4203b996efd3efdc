package main

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/heapkit/heap/checked"
)

// statsReport is the JSON form of checked.Stats.
type statsReport struct {
	Objects           int     `json:"objects"`
	ObjectBytes       uint64  `json:"object_bytes"`
	HeapBytes         int64   `json:"heap_bytes"`
	EmptyBytes        int64   `json:"empty_bytes"`
	OverheadPerObject float64 `json:"overhead_per_object"`
	ZeroSized         int     `json:"zero_sized"`
	GrowCalls         int     `json:"grow_calls"`
	ShrinkCalls       int     `json:"shrink_calls"`
	CacheHits         int     `json:"cache_hits"`
	ScanHits          int     `json:"scan_hits"`
	Splits            int     `json:"splits"`
	Coalesces         int     `json:"coalesces"`
}

func newStatsReport(st checked.Stats) statsReport {
	return statsReport{
		Objects:           st.Objects,
		ObjectBytes:       st.ObjectBytes,
		HeapBytes:         st.HeapBytes,
		EmptyBytes:        st.EmptyBytes,
		OverheadPerObject: st.OverheadPerObject(),
		ZeroSized:         st.ZeroSized,
		GrowCalls:         st.GrowCalls,
		ShrinkCalls:       st.ShrinkCalls,
		CacheHits:         st.Alloc.CacheHits,
		ScanHits:          st.Alloc.ScanHits,
		Splits:            st.Alloc.SplitCount,
		Coalesces:         st.Alloc.CoalesceForward + st.Alloc.CoalesceBackward,
	}
}

// printStats writes the heap usage summary. Numbers are grouped for tag.
func printStats(w io.Writer, tag language.Tag, st checked.Stats, detailed bool) {
	p := message.NewPrinter(tag)
	p.Fprintf(w, "Number of active heap objects: %d\n", st.Objects)
	p.Fprintf(w, "Size in bytes of active heap objects: %d\n", st.ObjectBytes)
	p.Fprintf(w, "Total heap size reserved: %d\n", st.HeapBytes)
	p.Fprintf(w, "Heap space empty: %d\n", st.EmptyBytes)
	p.Fprintf(w, "Heap fragmentation: %.2f bytes per object\n", st.OverheadPerObject())
	if !detailed {
		return
	}

	a := st.Alloc
	p.Fprintf(w, "\nAllocator:\n")
	p.Fprintf(w, "  Allocations: %d (cache %d, scan %d, growth %d)\n",
		a.AllocCalls, a.CacheHits, a.ScanHits, a.AllocSlowPath)
	p.Fprintf(w, "  Releases: %d\n", a.FreeCalls)
	p.Fprintf(w, "  Splits: %d\n", a.SplitCount)
	p.Fprintf(w, "  Coalesces: %d forward, %d backward\n", a.CoalesceForward, a.CoalesceBackward)
	p.Fprintf(w, "  Reallocs: %d in place, %d moved\n", a.ReallocInPlace, a.ReallocMoved)
	p.Fprintf(w, "  Growth: %d calls, %d bytes (%d merged into free tail)\n", a.GrowCalls, a.GrowBytes, a.GrowMerges)
	p.Fprintf(w, "  Shrink: %d calls, %d bytes, %d refused\n", a.ShrinkCalls, a.ShrinkBytes, a.ShrinkFailures)
}
