//go:build !linux

package brk

// Reserved is only available on linux. Elsewhere NewReserved always fails
// and callers fall back to Slice.
type Reserved struct{}

// NewReserved reports ErrUnsupported on this platform.
func NewReserved(max int) (*Reserved, error) {
	return nil, ErrUnsupported
}

// Sbrk implements Breaker.
func (r *Reserved) Sbrk(delta int64) (int64, error) { return 0, ErrUnsupported }

// Bytes implements Breaker.
func (r *Reserved) Bytes() []byte { return nil }

// Max returns 0 on this platform.
func (r *Reserved) Max() int64 { return 0 }

// Close is a no-op on this platform.
func (r *Reserved) Close() error { return nil }

var _ Breaker = (*Reserved)(nil)
