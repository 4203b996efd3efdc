package alloc

import "github.com/joshuapare/heapkit/heap/verify"

// Index returns the current free-space index state.
func (a *Allocator) Index() *verify.Index {
	return &verify.Index{
		FirstFree: a.firstFree,
		Cached:    a.recent.entries(),
	}
}

// Check validates the block chain and the free-space index. The error, when
// not nil, is a *verify.ValidationError and matches ErrCorrupt.
func (a *Allocator) Check() error {
	return verify.AllInvariants(a.r, a.Index())
}
