package alloc

import "github.com/joshuapare/heapkit/heap/region"

// recentCache holds the most recently released blocks, newest in slot 0.
//
// push shifts every slot right by one, so the oldest slot is dropped even when
// it is empty. A hit empties its slot without compacting the others.
type recentCache struct {
	slots []region.Block
}

func newRecentCache(n int) recentCache {
	c := recentCache{slots: make([]region.Block, n)}
	c.reset()
	return c
}

func (c *recentCache) push(b region.Block) {
	if len(c.slots) == 0 {
		return
	}
	copy(c.slots[1:], c.slots[:len(c.slots)-1])
	c.slots[0] = b
}

// take returns the most recent block accepted by fits and empties its slot.
func (c *recentCache) take(fits func(region.Block) (bool, error)) (region.Block, error) {
	for i, b := range c.slots {
		if b == region.NoBlock {
			continue
		}
		ok, err := fits(b)
		if err != nil {
			return region.NoBlock, err
		}
		if ok {
			c.slots[i] = region.NoBlock
			return b, nil
		}
	}
	return region.NoBlock, nil
}

// forget empties every slot holding b.
func (c *recentCache) forget(b region.Block) {
	for i := range c.slots {
		if c.slots[i] == b {
			c.slots[i] = region.NoBlock
		}
	}
}

func (c *recentCache) reset() {
	for i := range c.slots {
		c.slots[i] = region.NoBlock
	}
}

// entries returns the occupied slots, newest first.
func (c *recentCache) entries() []region.Block {
	out := make([]region.Block, 0, len(c.slots))
	for _, b := range c.slots {
		if b != region.NoBlock {
			out = append(out, b)
		}
	}
	return out
}
