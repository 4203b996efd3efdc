package brk

// DefaultPoison is the byte written over newly exposed heap memory by a
// poisoning Counter. Fresh memory is not guaranteed to be zero, and a
// non-zero pattern makes a missing clear in zeroed allocation visible.
const DefaultPoison = 0xad

// CounterOptions configures a Counter.
type CounterOptions struct {
	// Poison fills newly exposed bytes with PoisonByte after every increase.
	Poison     bool
	PoisonByte byte

	// OnShrink is called before the break moves down from `from` to `to`.
	// A non-nil error vetoes the move and is returned from Sbrk.
	OnShrink func(from, to int64) error
}

// CounterStats are the counts gathered by a Counter.
type CounterStats struct {
	Increases   int   // Sbrk calls with a positive delta
	Decreases   int   // Sbrk calls with a negative delta
	GrowBytes   int64 // total bytes added
	ShrinkBytes int64 // total bytes given back
	Peak        int64 // highest break observed
	Failed      int   // calls refused by the wrapped breaker or the hook
}

// Counter wraps a Breaker and records how it is driven.
type Counter struct {
	b     Breaker
	opts  CounterOptions
	stats CounterStats
}

// NewCounter wraps b. opts may be nil.
func NewCounter(b Breaker, opts *CounterOptions) *Counter {
	c := &Counter{b: b}
	if opts != nil {
		c.opts = *opts
	}
	return c
}

// Sbrk implements Breaker.
func (c *Counter) Sbrk(delta int64) (int64, error) {
	if delta < 0 && c.opts.OnShrink != nil {
		cur, err := c.b.Sbrk(0)
		if err != nil {
			c.stats.Failed++
			return cur, err
		}
		if err := c.opts.OnShrink(cur, cur+delta); err != nil {
			c.stats.Failed++
			return cur, err
		}
	}

	prev, err := c.b.Sbrk(delta)
	if err != nil {
		c.stats.Failed++
		return prev, err
	}

	switch {
	case delta > 0:
		c.stats.Increases++
		c.stats.GrowBytes += delta
		if c.opts.Poison {
			data := c.b.Bytes()
			for i := prev; i < prev+delta; i++ {
				data[i] = c.opts.PoisonByte
			}
		}
	case delta < 0:
		c.stats.Decreases++
		c.stats.ShrinkBytes += -delta
	}
	if end := prev + delta; end > c.stats.Peak {
		c.stats.Peak = end
	}
	return prev, nil
}

// Bytes implements Breaker.
func (c *Counter) Bytes() []byte { return c.b.Bytes() }

// Stats returns the counts gathered so far.
func (c *Counter) Stats() CounterStats { return c.stats }

// Unwrap returns the wrapped breaker.
func (c *Counter) Unwrap() Breaker { return c.b }

var _ Breaker = (*Counter)(nil)
