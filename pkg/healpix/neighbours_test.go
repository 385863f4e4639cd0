package healpix

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeighbours_BaseCells(t *testing.T) {
	l := MustGet(0)

	n0, err := l.Neighbours(0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 8}, n0.Sorted())
	_, ok := n0.Get(E)
	assert.False(t, ok, "polar faces have no east corner neighbour")

	n4, err := l.Neighbours(4)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 3, 5, 7, 8, 11}, n4.Sorted())
	e, ok := n4.Get(E)
	require.True(t, ok)
	assert.Equal(t, uint64(5), e)
	_, ok = n4.Get(N)
	assert.False(t, ok, "equatorial faces have no north corner neighbour")

	c, ok := n4.Get(C)
	require.True(t, ok)
	assert.Equal(t, uint64(4), c)
}

func TestNeighbours_InsideFace(t *testing.T) {
	l := MustGet(2)
	// cell (i=1, j=1) of face 6
	h := uint64(6<<4 | 3)
	n, err := l.Neighbours(h)
	require.NoError(t, err)
	require.Equal(t, 8, n.Len())
	want := map[Direction]uint64{
		S: 6<<4 | 0, SE: 6<<4 | 1, E: 6<<4 | 4,
		SW: 6<<4 | 2, NE: 6<<4 | 6,
		W: 6<<4 | 8, NW: 6<<4 | 9, N: 6<<4 | 12,
	}
	for d, w := range want {
		got, ok := n.Get(d)
		require.True(t, ok, d.String())
		assert.Equal(t, w, got, d.String())
	}
}

func TestNeighbours_Symmetry(t *testing.T) {
	for depth := uint8(0); depth <= 4; depth++ {
		l := MustGet(depth)
		for a := uint64(0); a < l.NHash(); a++ {
			na := l.neighbours(a)
			require.GreaterOrEqual(t, na.Len(), 6)
			seen := map[uint64]bool{}
			na.Each(func(d Direction, b uint64) {
				require.NotEqual(t, a, b)
				require.False(t, seen[b], "duplicate neighbour %d of %d", b, a)
				seen[b] = true

				nb := l.neighbours(b)
				require.True(t, slices.Contains(nb.Sorted(), a), "depth=%d: %d -> %d not symmetric", depth, a, b)

				// axes are shared inside a face, so the way back is the
				// opposite direction
				if a>>(2*uint(depth)) == b>>(2*uint(depth)) {
					back, ok := nb.Get(d.Opposite())
					require.True(t, ok)
					require.Equal(t, a, back)
				}
			})
		}
	}
}

func TestNeighbours_TouchTheCell(t *testing.T) {
	for _, depth := range []uint8{1, 3} {
		l := MustGet(depth)
		for h := uint64(0); h < l.NHash(); h++ {
			allowed := append(l.neighbours(h).Sorted(), h)
			g := newCellGeom(l, h)
			for _, b := range g.boundary {
				// step just outside the boundary, away from the center
				p := b.add(b.sub(g.center).scale(0.02)).normalize().lonLat()
				got, err := l.Hash(p.Lon, p.Lat)
				require.NoError(t, err)
				require.True(t, slices.Contains(allowed, got), "depth=%d cell=%d: %d is not a neighbour", depth, h, got)
			}
		}
	}
}

func TestNeighbours_CornerCellsHaveSeven(t *testing.T) {
	l := MustGet(3)
	seven := 0
	for h := uint64(0); h < l.NHash(); h++ {
		switch l.neighbours(h).Len() {
		case 7:
			seven++
		case 8:
		default:
			t.Fatalf("cell %d has %d neighbours", h, l.neighbours(h).Len())
		}
	}
	// 8 corners where only 3 faces meet, each touched by 3 cells
	assert.Equal(t, 24, seven)
}

func TestDirection_Opposite(t *testing.T) {
	assert.Equal(t, N, S.Opposite())
	assert.Equal(t, NW, SE.Opposite())
	assert.Equal(t, W, E.Opposite())
	assert.Equal(t, NE, SW.Opposite())
	assert.Equal(t, C, C.Opposite())
	assert.Equal(t, "NE", NE.String())
}
