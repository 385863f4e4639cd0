package healpix

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomLonLat draws positions uniformly distributed on the sphere.
func randomLonLat(r *rand.Rand) (float64, float64) {
	lon := r.Float64() * twoPi
	lat := math.Asin(2*r.Float64() - 1)
	return lon, lat
}

func TestGet_InvalidDepth(t *testing.T) {
	_, err := Get(MaxDepth + 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDepth))

	l, err := Get(MaxDepth)
	require.NoError(t, err)
	assert.Equal(t, uint32(1<<29), l.NSide())
	assert.Equal(t, uint64(12)<<58, l.NHash())
}

func TestHash_OriginIsBaseCell4(t *testing.T) {
	h, err := MustGet(0).Hash(0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), h)

	// the cell of (0, 0) at depth 1 is a child of base cell 4
	h1, err := MustGet(1).Hash(0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), h1>>2)
}

func TestHash_BaseCellCenters(t *testing.T) {
	l := MustGet(0)
	cases := []struct {
		lon, lat float64
		want     uint64
	}{
		{math.Pi / 4, 0.8, 0},
		{3 * math.Pi / 4, 0.8, 1},
		{5 * math.Pi / 4, 0.8, 2},
		{7 * math.Pi / 4, 0.8, 3},
		{0.01, 0, 4},
		{math.Pi / 2, 0, 5},
		{math.Pi, 0, 6},
		{3 * math.Pi / 2, 0, 7},
		{math.Pi / 4, -0.8, 8},
		{3 * math.Pi / 4, -0.8, 9},
		{5 * math.Pi / 4, -0.8, 10},
		{7 * math.Pi / 4, -0.8, 11},
	}
	for _, tc := range cases {
		h, err := l.Hash(tc.lon, tc.lat)
		require.NoError(t, err)
		assert.Equal(t, tc.want, h, "lon=%v lat=%v", tc.lon, tc.lat)
	}
}

// Points lying exactly on cell edges go to the cell with the larger local
// index along both axes, in the equatorial belt as in the polar caps.
func TestHash_EdgesGoToLargerIndex(t *testing.T) {
	type fij struct {
		face int
		i, j uint32
	}
	hashFIJ := func(l *Layer, lon, lat float64) fij {
		h, err := l.Hash(lon, lat)
		require.NoError(t, err)
		face, i, j := l.decode(h)
		return fij{face, i, j}
	}

	// (0, 0) is the center of face 4, where four cells meet
	for depth := uint8(1); depth <= MaxDepth; depth++ {
		l := MustGet(depth)
		n := l.NSide() / 2
		assert.Equal(t, fij{4, n, n}, hashFIJ(l, 0, 0), "depth=%d", depth)
	}

	// off the equator: with z = ±m/16, the lines through lon 0 cross the
	// depth 5 grid at integer coordinates 16 ± 1.5m
	l := MustGet(5)
	exact := 0
	for m := 2; m <= 10; m += 2 {
		z := float64(m) / 16
		lat := math.Asin(z)
		if math.Sin(lat) != z {
			continue
		}
		exact++
		up, down := uint32(16+3*m/2), uint32(16-3*m/2)
		assert.Equal(t, fij{4, up, up}, hashFIJ(l, 0, lat), "z=%v", z)
		assert.Equal(t, fij{4, down, down}, hashFIJ(l, 0, -lat), "z=%v", -z)
	}
	require.Positive(t, exact, "no exactly representable latitude")

	// the poles are clamped to the far corner of the polar faces
	l = MustGet(4)
	assert.Equal(t, fij{0, 15, 15}, hashFIJ(l, 0.3, halfPi))
	assert.Equal(t, fij{8, 0, 0}, hashFIJ(l, 0.3, -halfPi))
}

func TestHash_InvalidCoordinates(t *testing.T) {
	l := MustGet(5)
	for _, lat := range []float64{halfPi + 1e-9, -halfPi - 1e-9, math.NaN(), math.Inf(1)} {
		_, err := l.Hash(0, lat)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidCoordinate), "lat=%v", lat)
	}
	_, err := l.Hash(math.NaN(), 0)
	assert.True(t, errors.Is(err, ErrInvalidCoordinate))
}

func TestHash_LongitudeIsNormalized(t *testing.T) {
	l := MustGet(8)
	a, err := l.Hash(0.3, 0.4)
	require.NoError(t, err)
	b, err := l.Hash(0.3+4*math.Pi, 0.4)
	require.NoError(t, err)
	c, err := l.Hash(0.3-2*math.Pi, 0.4)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
}

func TestHash_Poles(t *testing.T) {
	for _, depth := range []uint8{0, 1, 5, 12, MaxDepth} {
		l := MustGet(depth)
		n, err := l.Hash(1.0, halfPi)
		require.NoError(t, err)
		s, err := l.Hash(1.0, -halfPi)
		require.NoError(t, err)
		assert.Less(t, n>>(2*uint(depth)), uint64(4), "north pole in a north face")
		assert.GreaterOrEqual(t, s>>(2*uint(depth)), uint64(8), "south pole in a south face")
	}
}

func TestCenter_RoundTripAllCells(t *testing.T) {
	for depth := uint8(0); depth <= 4; depth++ {
		l := MustGet(depth)
		for h := uint64(0); h < l.NHash(); h++ {
			c, err := l.Center(h)
			require.NoError(t, err)
			got, err := l.Hash(c.Lon, c.Lat)
			require.NoError(t, err)
			require.Equal(t, h, got, "depth=%d center=%v", depth, c)
		}
	}
}

func TestCenter_RoundTripRandom(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for _, depth := range []uint8{6, 10, 17, 24, MaxDepth} {
		l := MustGet(depth)
		for n := 0; n < 2000; n++ {
			lon, lat := randomLonLat(r)
			h, err := l.Hash(lon, lat)
			require.NoError(t, err)
			c, err := l.Center(h)
			require.NoError(t, err)
			got, err := l.Hash(c.Lon, c.Lat)
			require.NoError(t, err)
			require.Equal(t, h, got, "depth=%d lon=%v lat=%v", depth, lon, lat)
		}
	}
}

func TestCenter_InvalidHash(t *testing.T) {
	_, err := MustGet(1).Center(48)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCell))
}

func TestVertices_SurroundTheCell(t *testing.T) {
	for _, depth := range []uint8{0, 2, 7} {
		l := MustGet(depth)
		step := l.NHash()/97 + 1
		for h := uint64(0); h < l.NHash(); h += step {
			vs, err := l.Vertices(h)
			require.NoError(t, err)
			c := l.center(h).vec()
			for _, v := range vs {
				// a point slightly inside the cell from each vertex
				p := v.vec().scale(0.95).add(c.scale(0.05)).normalize().lonLat()
				got, err := l.Hash(p.Lon, p.Lat)
				require.NoError(t, err)
				require.Equal(t, h, got, "depth=%d vertex=%v", depth, v)
			}
		}
	}
}

func TestVertices_BaseCell4(t *testing.T) {
	vs, err := MustGet(0).Vertices(4)
	require.NoError(t, err)
	lat0 := math.Asin(twoThirds)
	assert.InDelta(t, 0, vs[0].Lon, 1e-12)
	assert.InDelta(t, -lat0, vs[0].Lat, 1e-12)
	assert.InDelta(t, math.Pi/4, vs[1].Lon, 1e-12)
	assert.InDelta(t, 0, vs[1].Lat, 1e-12)
	assert.InDelta(t, lat0, vs[2].Lat, 1e-12)
	assert.InDelta(t, 7*math.Pi/4, vs[3].Lon, 1e-12)
}

func TestPartition_EqualArea(t *testing.T) {
	l := MustGet(1)
	counts := make([]int, l.NHash())
	r := rand.New(rand.NewSource(1))
	const total = 192000
	for n := 0; n < total; n++ {
		lon, lat := randomLonLat(r)
		h, err := l.Hash(lon, lat)
		require.NoError(t, err)
		require.Less(t, h, l.NHash())
		counts[h]++
	}
	want := float64(total) / float64(l.NHash())
	for h, c := range counts {
		assert.InDelta(t, want, float64(c), 0.1*want, "cell %d", h)
	}
}

func TestPathAlongCellEdge(t *testing.T) {
	l := MustGet(3)
	path, err := l.PathAlongCellEdge(100, 3)
	require.NoError(t, err)
	require.Len(t, path, 12)
	vs, err := l.Vertices(100)
	require.NoError(t, err)
	for k := 0; k < 4; k++ {
		assert.InDelta(t, vs[k].Lat, path[3*k].Lat, 1e-12)
	}
}
