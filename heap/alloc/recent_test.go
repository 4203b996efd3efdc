package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/region"
)

func fitsAny(region.Block) (bool, error) { return true, nil }

func TestRecentCache_PushDropsOldest(t *testing.T) {
	c := newRecentCache(3)
	for _, b := range []region.Block{10, 20, 30, 40} {
		c.push(b)
	}
	require.Equal(t, []region.Block{40, 30, 20}, c.entries())
}

func TestRecentCache_PushShiftsEmptySlots(t *testing.T) {
	c := newRecentCache(3)
	c.push(10)
	c.push(20)
	c.push(30)

	b, err := c.take(func(b region.Block) (bool, error) { return b == 20, nil })
	require.NoError(t, err)
	require.Equal(t, region.Block(20), b)
	require.Equal(t, []region.Block{30, region.NoBlock, 10}, c.slots)

	// A push drops 10 even though a slot is empty.
	c.push(40)
	require.Equal(t, []region.Block{40, 30}, c.entries())
}

func TestRecentCache_TakeMostRecentFirst(t *testing.T) {
	c := newRecentCache(5)
	c.push(10)
	c.push(20)

	b, err := c.take(fitsAny)
	require.NoError(t, err)
	require.Equal(t, region.Block(20), b)

	b, err = c.take(fitsAny)
	require.NoError(t, err)
	require.Equal(t, region.Block(10), b)

	b, err = c.take(fitsAny)
	require.NoError(t, err)
	require.Equal(t, region.NoBlock, b)
}

func TestRecentCache_Forget(t *testing.T) {
	c := newRecentCache(5)
	c.push(10)
	c.push(20)
	c.forget(10)
	require.Equal(t, []region.Block{20}, c.entries())
}

func TestRecentCache_Disabled(t *testing.T) {
	c := newRecentCache(0)
	c.push(10)
	b, err := c.take(fitsAny)
	require.NoError(t, err)
	require.Equal(t, region.NoBlock, b)
}
