package checked

import (
	"cmp"
	"slices"

	"github.com/joshuapare/heapkit/heap/alloc"
)

// span is one allocation as seen by the caller: [lo, hi) plus the byte it
// was filled with.
type span struct {
	lo, hi uint64
	data   byte
}

func (s span) ptr() alloc.Ptr { return alloc.Ptr(s.lo) }
func (s span) size() uint64   { return s.hi - s.lo }

func (s span) overlaps(lo, hi uint64) bool {
	return s.lo < hi && lo < s.hi
}

// spanList keeps live spans sorted by start address.
type spanList struct {
	spans []span
	bytes uint64
}

func (l *spanList) search(lo uint64) (int, bool) {
	return slices.BinarySearchFunc(l.spans, lo, func(s span, lo uint64) int {
		return cmp.Compare(s.lo, lo)
	})
}

// find returns the span starting at lo.
func (l *spanList) find(lo uint64) (span, bool) {
	i, ok := l.search(lo)
	if !ok {
		return span{}, false
	}
	return l.spans[i], true
}

// overlap returns a span sharing bytes with [lo, hi).
func (l *spanList) overlap(lo, hi uint64) (span, bool) {
	i, _ := l.search(lo)
	if i > 0 && l.spans[i-1].overlaps(lo, hi) {
		return l.spans[i-1], true
	}
	if i < len(l.spans) && l.spans[i].overlaps(lo, hi) {
		return l.spans[i], true
	}
	return span{}, false
}

func (l *spanList) insert(s span) {
	i, _ := l.search(s.lo)
	l.spans = slices.Insert(l.spans, i, s)
	l.bytes += s.size()
}

func (l *spanList) remove(lo uint64) (span, bool) {
	i, ok := l.search(lo)
	if !ok {
		return span{}, false
	}
	s := l.spans[i]
	l.spans = slices.Delete(l.spans, i, i+1)
	l.bytes -= s.size()
	return s, true
}

func (l *spanList) len() int { return len(l.spans) }
