package moc

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/healpix-moc/pkg/healpix"
)

func flat(t *testing.T, m *MOC, depth uint8) map[uint64]bool {
	t.Helper()
	hs, err := m.Flatten(depth)
	require.NoError(t, err)
	out := make(map[uint64]bool, len(hs))
	for _, h := range hs {
		out[h] = true
	}
	return out
}

func TestSetOps_AgainstFlatSets(t *testing.T) {
	r := rand.New(rand.NewSource(21))
	const depth = 5
	n := healpix.MustGet(depth).NHash()
	for round := 0; round < 30; round++ {
		a := randomMOC(t, r, depth, 1+r.Intn(200))
		b := randomMOC(t, r, 4, 1+r.Intn(200))
		fa, fb := flat(t, a, depth), flat(t, b, depth)

		union := a.Union(b)
		inter := a.Intersection(b)
		diff := a.Difference(b)
		sym := a.SymmetricDifference(b)
		for _, m := range []*MOC{union, inter, diff, sym} {
			requireNormalized(t, m)
			require.Equal(t, uint8(depth), m.Depth())
		}
		fu, fi, fd, fs := flat(t, union, depth), flat(t, inter, depth), flat(t, diff, depth), flat(t, sym, depth)
		for h := uint64(0); h < n; h++ {
			require.Equal(t, fa[h] || fb[h], fu[h], "union %d", h)
			require.Equal(t, fa[h] && fb[h], fi[h], "intersection %d", h)
			require.Equal(t, fa[h] && !fb[h], fd[h], "difference %d", h)
			require.Equal(t, fa[h] != fb[h], fs[h], "symmetric difference %d", h)
		}
	}
}

func TestSetOps_Laws(t *testing.T) {
	r := rand.New(rand.NewSource(34))
	for round := 0; round < 50; round++ {
		a := randomMOC(t, r, 6, 1+r.Intn(150))
		b := randomMOC(t, r, 6, 1+r.Intn(150))

		assert.True(t, a.Union(b).Equal(b.Union(a)))
		assert.True(t, a.Intersection(b).Equal(b.Intersection(a)))

		assert.True(t, a.Intersection(a.Complement()).IsEmpty())
		assert.True(t, a.Union(a.Complement()).IsFull())
		assert.True(t, a.Complement().Complement().Equal(a))

		// De Morgan
		assert.True(t, a.Union(b).Complement().Equal(a.Complement().Intersection(b.Complement())))
		assert.True(t, a.Intersection(b).Complement().Equal(a.Complement().Union(b.Complement())))

		assert.True(t, a.Difference(b).Equal(a.Intersection(b.Complement())))
		assert.True(t, a.SymmetricDifference(b).Equal(a.Union(b).Difference(a.Intersection(b))))
		assert.True(t, a.Union(a).Equal(a))
		assert.True(t, a.Intersection(a).Equal(a))
	}
}

func TestComplement_EmptyAndFull(t *testing.T) {
	empty, err := Empty(3)
	require.NoError(t, err)
	full, err := Full(3)
	require.NoError(t, err)

	assert.True(t, empty.Complement().Equal(full))
	assert.True(t, full.Complement().Equal(empty))
	assert.True(t, full.Difference(full).IsEmpty())
	assert.True(t, empty.Union(empty).IsEmpty())
}

func TestComplement_SingleCell(t *testing.T) {
	m, err := FromCells(2, []healpix.Cell{{Depth: 2, Hash: 5}})
	require.NoError(t, err)
	got := m.Complement().Cells()
	want := []healpix.Cell{
		{Depth: 2, Hash: 4}, {Depth: 2, Hash: 6}, {Depth: 2, Hash: 7},
		{Depth: 1, Hash: 0}, {Depth: 1, Hash: 2}, {Depth: 1, Hash: 3},
	}
	for h := uint64(1); h < healpix.NBaseCells; h++ {
		want = append(want, healpix.Cell{Depth: 0, Hash: h})
	}
	slices.SortFunc(want, healpix.CompareZ)
	assert.Equal(t, want, got)
}

func TestUnion_MixedDepths(t *testing.T) {
	a, err := FromCells(1, []healpix.Cell{{Depth: 1, Hash: 0}, {Depth: 1, Hash: 1}, {Depth: 1, Hash: 2}})
	require.NoError(t, err)
	b, err := FromCells(3, []healpix.Cell{{Depth: 2, Hash: 12}, {Depth: 2, Hash: 13}, {Depth: 2, Hash: 14}, {Depth: 3, Hash: 60}, {Depth: 3, Hash: 61}, {Depth: 3, Hash: 62}, {Depth: 3, Hash: 63}})
	require.NoError(t, err)

	u := a.Union(b)
	assert.Equal(t, uint8(3), u.Depth())
	assert.Equal(t, []healpix.Cell{{Depth: 0, Hash: 0}}, u.Cells())
}
