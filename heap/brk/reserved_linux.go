//go:build linux

package brk

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Reserved is a Breaker over one anonymous PROT_NONE reservation.
//
// The reservation is made once; growth flips the protection of the pages
// below the new break to read/write and shrinking drops the pages above it
// back to PROT_NONE after telling the kernel it may reclaim them.
type Reserved struct {
	mem       []byte
	brk       int64
	committed int64 // page-rounded length currently readable/writable
	page      int64
}

// NewReserved reserves max bytes (rounded up to the page size) of address space.
func NewReserved(max int) (*Reserved, error) {
	page := int64(unix.Getpagesize())
	size := alignUp(int64(max), page)
	if size <= 0 {
		return nil, fmt.Errorf("brk: reservation of %d bytes: %w", max, ErrNoMemory)
	}
	mem, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE,
		unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_NORESERVE)
	if err != nil {
		return nil, fmt.Errorf("brk: reserve %d bytes: %w", size, err)
	}
	return &Reserved{mem: mem, page: page}, nil
}

// Sbrk implements Breaker.
func (r *Reserved) Sbrk(delta int64) (int64, error) {
	if r.mem == nil {
		return 0, ErrClosed
	}
	prev := r.brk
	if delta == 0 {
		return prev, nil
	}
	next, err := nextBreak(prev, delta, int64(len(r.mem)))
	if err != nil {
		return prev, fmt.Errorf("sbrk(%d) at %d (max %d): %w", delta, prev, len(r.mem), err)
	}

	want := alignUp(next, r.page)
	switch {
	case want > r.committed:
		if err := unix.Mprotect(r.mem[r.committed:want], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			return prev, fmt.Errorf("sbrk(%d): mprotect: %w", delta, err)
		}
	case want < r.committed:
		span := r.mem[want:r.committed]
		if err := unix.Madvise(span, unix.MADV_DONTNEED); err != nil {
			return prev, fmt.Errorf("sbrk(%d): madvise: %w", delta, err)
		}
		if err := unix.Mprotect(span, unix.PROT_NONE); err != nil {
			return prev, fmt.Errorf("sbrk(%d): mprotect: %w", delta, err)
		}
	}
	r.committed = want
	r.brk = next
	return prev, nil
}

// Bytes implements Breaker.
func (r *Reserved) Bytes() []byte {
	if r.mem == nil {
		return nil
	}
	return r.mem[:r.brk]
}

// Max returns the size of the reservation.
func (r *Reserved) Max() int64 { return int64(len(r.mem)) }

// Close releases the reservation. The breaker cannot be used afterwards.
func (r *Reserved) Close() error {
	if r.mem == nil {
		return nil
	}
	err := unix.Munmap(r.mem)
	r.mem = nil
	r.brk, r.committed = 0, 0
	return err
}

func alignUp(n, page int64) int64 {
	return (n + page - 1) &^ (page - 1)
}

var _ Breaker = (*Reserved)(nil)
