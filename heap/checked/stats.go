package checked

import "github.com/joshuapare/heapkit/heap/alloc"

// Stats summarizes the heap as the caller sees it.
type Stats struct {
	Objects     int    // Live allocations
	ObjectBytes uint64 // Bytes requested by live allocations
	HeapBytes   int64  // Bytes between heap start and break
	EmptyBytes  int64  // HeapBytes not covered by live allocations
	ZeroSized   int    // Zero-sized requests served
	GrowCalls   int    // Break increases
	ShrinkCalls int    // Break decreases
	Alloc       alloc.Stats
}

// OverheadPerObject returns the empty heap bytes per live allocation.
func (s Stats) OverheadPerObject() float64 {
	if s.Objects == 0 {
		return 0
	}
	return float64(s.EmptyBytes) / float64(s.Objects)
}

// Stats returns the current statistics.
func (h *Heap) Stats() Stats {
	heapBytes := h.a.Region().Size()
	cs := h.counter.Stats()
	return Stats{
		Objects:     h.live.len(),
		ObjectBytes: h.live.bytes,
		HeapBytes:   heapBytes,
		EmptyBytes:  heapBytes - int64(h.live.bytes),
		ZeroSized:   h.zero,
		GrowCalls:   cs.Increases,
		ShrinkCalls: cs.Decreases,
		Alloc:       h.a.Stats(),
	}
}
