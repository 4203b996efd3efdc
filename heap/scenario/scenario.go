// Package scenario holds named, reproducible workloads run against a
// checked.Heap. Each one exercises one aspect of the allocator (reuse,
// splitting, merging, batching, locality, giving memory back) and fails with
// a descriptive error on the first property that does not hold.
package scenario

import (
	"errors"
	"fmt"
	"math/bits"
	"math/rand"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/checked"
)

var (
	// ErrUnknown indicates a scenario name that is not registered.
	ErrUnknown = errors.New("scenario: unknown scenario")

	// ErrFailed indicates a scenario property that did not hold.
	ErrFailed = errors.New("scenario: check failed")
)

// Scenario is one named workload.
type Scenario struct {
	Name string
	Help string
	Run  func(h *checked.Heap) error
}

var registry = []Scenario{
	{"malloc-simple", "allocate a handful of small and page-sized objects", mallocSimple},
	{"malloc-zero", "zero-sized requests between regular ones", mallocZero},
	{"malloc-orders", "one allocation of every power of two", mallocOrders},
	{"malloc-random", "10000 random allocations up to 1 KiB", mallocRandom},
	{"calloc", "zeroed arrays of assorted shapes", callocArrays},
	{"free-random", "random allocations released and reallocated", freeRandom},
	{"free-reuse", "released memory is reused for every size", freeReuse},
	{"free-reuse-split", "small requests are carved out of a released big block", freeReuseSplit},
	{"free-reuse-merge", "neighbouring releases merge into a block for a bigger request", freeReuseMerge},
	{"realloc", "resize every object to every size", reallocAll},
	{"realloc-zero", "resize to zero releases and the space is reused", reallocZero},
	{"realloc-opt", "resizing within the current block keeps the pointer", reallocOpt},
	{"batch", "small allocations do not grow the heap one by one", batch},
	{"fragmentation-16", "random word-aligned allocations, under 17 bytes overhead each", fragmentation(17)},
	{"fragmentation-8", "random word-aligned allocations, under 9 bytes overhead each", fragmentation(9)},
	{"locality", "recently released blocks are reused first", locality},
	{"unmap", "a freed tail is given back to the system", unmap},
	{"heap-fill", "fill a quarter of the break with tiny objects", heapFill},
}

// Names returns every scenario name in registration order.
func Names() []string {
	names := make([]string, len(registry))
	for i, s := range registry {
		names[i] = s.Name
	}
	return names
}

// All returns every registered scenario.
func All() []Scenario {
	return append([]Scenario(nil), registry...)
}

// Lookup returns the scenario called name.
func Lookup(name string) (Scenario, bool) {
	for _, s := range registry {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// Run runs the scenario called name against h.
func Run(name string, h *checked.Heap) error {
	s, ok := Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	if err := s.Run(h); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func check(ok bool, format string, args ...any) error {
	if ok {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrFailed, fmt.Sprintf(format, args...))
}

func allocAll(h *checked.Heap, sizes ...uint64) ([]alloc.Ptr, error) {
	ptrs := make([]alloc.Ptr, len(sizes))
	for i, sz := range sizes {
		p, err := h.Alloc(sz)
		if err != nil {
			return nil, err
		}
		ptrs[i] = p
	}
	return ptrs, nil
}

func alignUp(n, align uint64) uint64 {
	return (n + align - 1) / align * align
}

// randomizedAllocs makes num allocations of random sizes below maxSize,
// rounded up to align. The generator is seeded with maxSize.
func randomizedAllocs(h *checked.Heap, num int, maxSize int, align uint64) error {
	if err := h.CheckData(); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(int64(maxSize)))
	h.SetIntegrityCheck(false)
	defer h.SetIntegrityCheck(true)
	for range num {
		if _, err := h.Alloc(alignUp(uint64(rng.Intn(maxSize)), align)); err != nil {
			return err
		}
	}
	return h.CheckData()
}

func mallocSimple(h *checked.Heap) error {
	_, err := allocAll(h, 1, 8, 128, 4096, 4097)
	return err
}

func mallocZero(h *checked.Heap) error {
	if err := mallocSimple(h); err != nil {
		return err
	}
	for range 2 {
		p, err := h.Alloc(0)
		if err != nil {
			return err
		}
		if err := check(p == alloc.Nil, "malloc(0) returned %#x", p); err != nil {
			return err
		}
	}
	return mallocSimple(h)
}

func mallocOrders(h *checked.Heap) error {
	// Up to 32 MiB with the default break; smaller breaks stop earlier so
	// the sum of all orders still fits.
	maxOrder := min(26, bits.Len(uint(h.Config().BrkSize))-2)
	for order := range maxOrder {
		if _, err := h.Alloc(1 << order); err != nil {
			return fmt.Errorf("order %d: %w", order, err)
		}
	}
	return nil
}

func mallocRandom(h *checked.Heap) error {
	return randomizedAllocs(h, 10000, 1024, 1)
}

func callocArrays(h *checked.Heap) error {
	shapes := [][2]uint64{{0, 1}, {1, 0}, {1, 1}, {1, 8}, {8, 1}, {128, 127}, {127, 128}, {127, 4096}}
	for _, s := range shapes {
		if _, err := h.AllocArray(s[0], s[1]); err != nil {
			return fmt.Errorf("calloc(%d, %d): %w", s[0], s[1], err)
		}
	}
	return nil
}

func freeRandom(h *checked.Heap) error {
	const (
		maxSize = 1024
		num     = 1000
	)
	rng := rand.New(rand.NewSource(0))
	bufs := make([]alloc.Ptr, num)
	for range 2 {
		for i := range bufs {
			p, err := h.Alloc(uint64(rng.Intn(maxSize)))
			if err != nil {
				return err
			}
			bufs[i] = p
		}
		for _, p := range bufs {
			if err := h.Free(p); err != nil {
				return err
			}
		}
	}
	return nil
}

func freeReuse(h *checked.Heap) error {
	sizes := []uint64{64, 96, 128, 4097}
	for range 500 {
		if _, err := allocAll(h, sizes...); err != nil {
			return err
		}
	}
	for _, p := range h.Ptrs() {
		if err := h.Free(p); err != nil {
			return err
		}
	}
	for i := len(sizes) - 1; i >= 0; i-- {
		p, err := h.Alloc(sizes[i])
		if err != nil {
			return err
		}
		if err := check(h.Reused(p, sizes[i]),
			"new allocation did not reuse any freed memory (size=%d, new=%#x)", sizes[i], p); err != nil {
			return err
		}
	}
	return nil
}

func freeReuseSplit(h *checked.Heap) error {
	const bigSize = 4096
	big, err := h.Alloc(bigSize)
	if err != nil {
		return err
	}
	if err := h.Free(big); err != nil {
		return err
	}
	for range 64 {
		p, err := h.Alloc(8)
		if err != nil {
			return err
		}
		if err := check(p >= big && p < big+bigSize,
			"new 8-byte alloc %#x did not come out of old freed chunk %#x-%#x", p, big, big+bigSize); err != nil {
			return err
		}
	}
	return nil
}

func freeReuseMerge(h *checked.Heap) error {
	const (
		bigSize = 1024
		num     = 128
		ps      = num / 4
	)
	first, err := h.Alloc(8)
	if err != nil {
		return err
	}
	bufs := make([]alloc.Ptr, num)
	for i := range bufs {
		if bufs[i], err = h.Alloc(8); err != nil {
			return err
		}
	}
	last, err := h.Alloc(8)
	if err != nil {
		return err
	}

	low, high := min(first, last), max(first, last)
	for i, p := range bufs {
		if err := check(low < p && p < high,
			"allocation %d at %#x not between first and last allocation %#x and %#x", i, p, low, high); err != nil {
			return err
		}
	}

	// Release the four quarters out of order so merges happen in both directions.
	order := make([]int, 0, num)
	for i := 0; i < ps; i++ {
		order = append(order, i)
	}
	for i := ps * 2; i < ps*3; i++ {
		order = append(order, i)
	}
	for i := ps*2 - 1; i >= ps; i-- {
		order = append(order, i)
	}
	for i := ps*4 - 1; i >= ps*3; i-- {
		order = append(order, i)
	}
	for _, i := range order {
		if err := h.Free(bufs[i]); err != nil {
			return err
		}
	}

	big, err := h.Alloc(bigSize)
	if err != nil {
		return err
	}
	if err := check(low < big && big < high,
		"big allocation at %#x not in freed area %#x-%#x", big, bufs[0], bufs[num-1]); err != nil {
		return err
	}
	return check(h.Reused(big, bigSize), "big alloc %#x did not reuse any freed memory", big)
}

func reallocAll(h *checked.Heap) error {
	sizes := []uint64{1, 2, 8, 64, 96, 128, 4096, 4097}
	bufs, err := allocAll(h, sizes...)
	if err != nil {
		return err
	}
	for _, sz := range sizes {
		for i := range bufs {
			if bufs[i], err = h.Realloc(bufs[i], sz); err != nil {
				return err
			}
		}
	}
	return nil
}

func reallocZero(h *checked.Heap) error {
	var (
		old [3]alloc.Ptr
		err error
	)
	if old[0], err = h.Alloc(10); err != nil {
		return err
	}
	if old[1], err = h.Realloc(alloc.Nil, 10); err != nil {
		return err
	}
	if old[2], err = h.Alloc(10); err != nil {
		return err
	}
	for _, i := range []int{1, 0, 2} {
		if _, err := h.Realloc(old[i], 0); err != nil {
			return err
		}
	}

	var got [3]alloc.Ptr
	if got[0], err = h.Alloc(10); err != nil {
		return err
	}
	if got[1], err = h.Realloc(alloc.Nil, 10); err != nil {
		return err
	}
	if got[2], err = h.Alloc(10); err != nil {
		return err
	}
	for i, p := range old {
		if err := check(got[0] == p || got[1] == p || got[2] == p,
			"no reuse for freed realloc %d (%#x)", i, p); err != nil {
			return err
		}
	}
	return nil
}

func reallocOpt(h *checked.Heap) error {
	sizes := []uint64{1, 2, 8, 64, 96, 128, 4096, 4097}
	bufs, err := allocAll(h, sizes...)
	if err != nil {
		return err
	}
	for i, p := range bufs {
		np, err := h.Realloc(p, 128)
		if err != nil {
			return err
		}
		if sizes[i] >= 128 {
			if err := check(np == p,
				"new size 128 of %#x would have fit in old allocation size %d for %#x", np, sizes[i], p); err != nil {
				return err
			}
		}
		bufs[i] = np
	}
	for _, p := range bufs {
		np, err := h.Realloc(p, 16)
		if err != nil {
			return err
		}
		if err := check(np == p,
			"new size 16 of %#x would have fit in old allocation size 128 for %#x", np, p); err != nil {
			return err
		}
	}
	return nil
}

func batch(h *checked.Heap) error {
	const perSize = 32
	before := h.Counter().Stats().Increases
	for range perSize {
		if _, err := allocAll(h, 1, 8, 16, 32); err != nil {
			return err
		}
	}
	grows := h.Counter().Stats().Increases - before
	return check(grows < 8,
		"calls to brk not batched, got %d brk increases for %d allocations", grows, perSize*4)
}

func fragmentation(limit float64) func(h *checked.Heap) error {
	return func(h *checked.Heap) error {
		if err := randomizedAllocs(h, 10000, 128, 8); err != nil {
			return err
		}
		overhead := h.Stats().OverheadPerObject()
		if err := check(overhead != 0, "overhead per alloc is zero, no metadata?"); err != nil {
			return err
		}
		return check(overhead < limit, "overhead per alloc of %.2f byte too high", overhead)
	}
}

func locality(h *checked.Heap) error {
	order := [5]int{0, 4, 3, 1, 2}
	var gen [5]alloc.Ptr

	if _, err := h.Alloc(8); err != nil {
		return err
	}
	for i := range gen {
		p, err := h.Alloc(8)
		if err != nil {
			return err
		}
		gen[i] = p
		if _, err := h.Alloc(8); err != nil {
			return err
		}
	}
	for _, i := range order {
		if err := h.Free(gen[i]); err != nil {
			return err
		}
	}
	for i := range gen {
		p, err := h.Alloc(8)
		if err != nil {
			return err
		}
		want := gen[order[len(order)-1-i]]
		if err := check(p == want,
			"expected allocation %d to go in slot %d (%#x), got %#x", i, order[len(order)-1-i], want, p); err != nil {
			return err
		}
	}
	return nil
}

func unmap(h *checked.Heap) error {
	const (
		num  = 64
		size = 512
	)
	decreases := func(base int) int { return h.Counter().Stats().Decreases - base }
	base := h.Counter().Stats().Decreases

	first, err := h.Alloc(size)
	if err != nil {
		return err
	}
	ptrs := make([]alloc.Ptr, num)
	for i := range ptrs {
		if ptrs[i], err = h.Alloc(size); err != nil {
			return err
		}
	}
	last, err := h.Alloc(size)
	if err != nil {
		return err
	}

	low, high := min(first, last), max(first, last)
	for i, p := range ptrs {
		if err := check(low < p && p < high,
			"allocation %d at %#x not between first and last allocation %#x and %#x", i, p, low, high); err != nil {
			return err
		}
	}
	if err := check(decreases(base) == 0,
		"got %d brk calls that decrease heap while no object has been freed yet", decreases(base)); err != nil {
		return err
	}

	for _, p := range ptrs {
		if err := h.Free(p); err != nil {
			return err
		}
	}
	if err := check(decreases(base) == 0,
		"got %d brk calls that decrease heap while the last object has not been freed", decreases(base)); err != nil {
		return err
	}

	if err := h.Free(high); err != nil {
		return err
	}
	if err := check(decreases(base) > 0, "heap size not decreased while all objects are freed"); err != nil {
		return err
	}

	// The eight highest allocations must lie above the new break.
	top := ptrs[num-8:]
	if ptrs[0] > ptrs[num-1] {
		top = ptrs[:8]
	}
	end := h.Allocator().Region().End()
	for _, p := range top {
		if err := check(end < int64(p),
			"allocation %#x has been freed but is still part of the allocated heap (brk=%#x)", p, end); err != nil {
			return err
		}
	}
	return nil
}

func heapFill(h *checked.Heap) error {
	const (
		size      = 8
		blockSize = 64 // allow 56 bytes of metadata per object
	)
	num := h.Config().BrkSize / blockSize
	h.SetIntegrityCheck(false)
	defer h.SetIntegrityCheck(true)
	for i := range num {
		if _, err := h.Alloc(size); err != nil {
			return fmt.Errorf("allocation %d of %d: %w", i, num, err)
		}
	}
	return nil
}
