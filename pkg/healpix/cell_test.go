package healpix

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell_ParentChildrenRoundTrip(t *testing.T) {
	c, err := NewCell(8, 123456)
	require.NoError(t, err)

	p, err := c.Parent(7)
	require.NoError(t, err)
	assert.Equal(t, Cell{Depth: 7, Hash: 123456 >> 2}, p)

	kids, err := p.Children(8)
	require.NoError(t, err)
	require.Len(t, kids, 4)
	assert.Contains(t, kids, c)
	for _, k := range kids {
		assert.True(t, p.Contains(k))
		assert.True(t, k.Overlaps(p))
	}

	same, err := c.Children(8)
	require.NoError(t, err)
	assert.Equal(t, []Cell{c}, same)

	p8, err := c.Parent(8)
	require.NoError(t, err)
	assert.Equal(t, c, p8)
}

func TestCell_BadTransitions(t *testing.T) {
	c := Cell{Depth: 9, Hash: 42}
	_, err := c.Parent(10)
	assert.True(t, errors.Is(err, ErrInvalidDepth))
	_, err = c.Children(8)
	assert.True(t, errors.Is(err, ErrInvalidDepth))
	_, err = c.Children(9 + maxChildrenSpan + 1)
	assert.True(t, errors.Is(err, ErrInvalidDepth))

	_, err = NewCell(1, 48)
	assert.True(t, errors.Is(err, ErrInvalidCell))
	_, err = NewCell(30, 0)
	assert.True(t, errors.Is(err, ErrInvalidDepth))
}

func TestCell_Range(t *testing.T) {
	start, end := Cell{Depth: 0, Hash: 1}.Range()
	assert.Equal(t, uint64(1)<<58, start)
	assert.Equal(t, uint64(2)<<58, end)

	start, end = Cell{Depth: MaxDepth, Hash: 7}.Range()
	assert.Equal(t, uint64(7), start)
	assert.Equal(t, uint64(8), end)
}

func TestZUniq_RoundTripAndOrder(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for n := 0; n < 1000; n++ {
		depth := uint8(r.Intn(MaxDepth + 1))
		c := Cell{Depth: depth, Hash: r.Uint64() % MustGet(depth).NHash()}
		got, err := FromZUniq(c.ZUniq())
		require.NoError(t, err)
		require.Equal(t, c, got)
	}

	parent := Cell{Depth: 3, Hash: 17}
	kids, err := parent.Children(4)
	require.NoError(t, err)
	// zuniq sorts the parent between its second and third children
	assert.Less(t, kids[1].ZUniq(), parent.ZUniq())
	assert.Less(t, parent.ZUniq(), kids[2].ZUniq())
	assert.Equal(t, -1, CompareZ(kids[0], kids[3]))

	assert.True(t, AreOverlapping(parent.ZUniq(), kids[3].ZUniq()))
	assert.False(t, AreOverlapping(kids[0].ZUniq(), kids[3].ZUniq()))

	_, err = FromZUniq(0)
	assert.Error(t, err)
	_, err = FromZUniq(2) // odd number of trailing zeros
	assert.Error(t, err)
}

func TestUniq_RoundTrip(t *testing.T) {
	assert.Equal(t, uint64(4), Cell{Depth: 0, Hash: 0}.Uniq())
	assert.Equal(t, uint64(15), Cell{Depth: 0, Hash: 11}.Uniq())
	assert.Equal(t, uint64(16), Cell{Depth: 1, Hash: 0}.Uniq())

	for _, c := range []Cell{{0, 5}, {1, 47}, {12, 1 << 20}, {MaxDepth, 12<<58 - 1}} {
		got, err := FromUniq(c.Uniq())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := FromUniq(3)
	assert.Error(t, err)
}

func TestBaseCells(t *testing.T) {
	bc := BaseCells()
	require.Len(t, bc, NBaseCells)
	for i, c := range bc {
		assert.Equal(t, Cell{Depth: 0, Hash: uint64(i)}, c)
		assert.Equal(t, fmt.Sprintf("0/%d", i), c.String())
	}
}
