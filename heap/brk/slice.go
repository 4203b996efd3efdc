package brk

import "fmt"

// Slice is an in-memory Breaker backed by a single byte array.
//
// The full capacity is reserved when the breaker is created so the arena
// never moves; only the length of the slice follows the break.
type Slice struct {
	data []byte
}

// NewSlice creates a breaker that can grow up to max bytes.
func NewSlice(max int) *Slice {
	if max < 0 {
		max = 0
	}
	return &Slice{data: make([]byte, 0, max)}
}

// Sbrk implements Breaker.
func (s *Slice) Sbrk(delta int64) (int64, error) {
	prev := int64(len(s.data))
	if delta == 0 {
		return prev, nil
	}
	next, err := nextBreak(prev, delta, int64(cap(s.data)))
	if err != nil {
		return prev, fmt.Errorf("sbrk(%d) at %d (max %d): %w", delta, prev, cap(s.data), err)
	}
	s.data = s.data[:next]
	if delta > 0 {
		clear(s.data[prev:next])
	}
	return prev, nil
}

// Bytes implements Breaker.
func (s *Slice) Bytes() []byte { return s.data }

// Max returns the largest break this breaker accepts.
func (s *Slice) Max() int64 { return int64(cap(s.data)) }

var _ Breaker = (*Slice)(nil)
