package healpix

import (
	"fmt"
	"slices"
	"strconv"
)

type relation int8

const (
	disjoint relation = iota
	partial
	contained
)

// Region is a sky region a coverage can be computed for: a Cone, a
// Polygon or a Zone.
type Region interface {
	// String describes the region without loss: two regions with the same
	// description have the same coverage.
	fmt.Stringer
	// relate classifies a cell from its bounding cap. It may answer
	// partial for a cell that is in fact disjoint or contained, never the
	// other way around.
	relate(g *cellGeom) relation
	// intersects decides, for a cell classified partial at the target
	// depth, whether the cell and the region share at least one point.
	intersects(g *cellGeom) bool
}

// describe formats kind(v0,v1,...) with the shortest decimal form that
// parses back to each exact value.
func describe(kind string, vs ...float64) string {
	b := make([]byte, 0, len(kind)+2+24*len(vs))
	b = append(b, kind...)
	b = append(b, '(')
	for k, v := range vs {
		if k > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendFloat(b, v, 'g', -1, 64)
	}
	return string(append(b, ')'))
}

// capMargin inflates the bounding cap radius computed from boundary
// samples so that it also encloses the curved edges between samples.
const capMargin = 1.01

// cellGeom is the geometry of a cell used by the region tests.
type cellGeom struct {
	layer    *Layer
	hash     uint64
	center   vec3
	radius   float64
	boundary []vec3
}

func samplesPerSide(depth uint8) int {
	switch {
	case depth < 3:
		return 8
	case depth < 8:
		return 4
	default:
		return 2
	}
}

func newCellGeom(l *Layer, hash uint64) *cellGeom {
	face, i, j := l.decode(hash)
	g := &cellGeom{
		layer:    l,
		hash:     hash,
		center:   l.center(hash).vec(),
		boundary: make([]vec3, 0, 4*samplesPerSide(l.depth)),
	}
	l.walkEdge(face, i, j, samplesPerSide(l.depth), func(a, b float64) {
		g.boundary = append(g.boundary, faceToLonLat(face, a, b).vec())
	})
	for _, p := range g.boundary {
		if d := angDist(g.center, p); d > g.radius {
			g.radius = d
		}
	}
	g.radius *= capMargin
	return g
}

// segments calls fn on the closed boundary polyline of the cell until fn
// returns true.
func (g *cellGeom) segments(fn func(a, b vec3) bool) bool {
	n := len(g.boundary)
	for k := 0; k < n; k++ {
		if fn(g.boundary[k], g.boundary[(k+1)%n]) {
			return true
		}
	}
	return false
}

func (g *cellGeom) holds(p LonLat) bool {
	lon, err := checkCoord(p.Lon, p.Lat)
	if err != nil {
		return false
	}
	return g.layer.hash(lon, p.Lat) == g.hash
}

// Coverage returns the cells of depth at most depth intersecting the region.
// Cells entirely inside the region are returned at the lowest depth they
// are proven inside; the other cells are returned at the given depth. The
// result is sorted along the z-order curve and non-overlapping.
func Coverage(r Region, depth uint8) ([]Cell, error) {
	return CoverageFrom(r, depth, BaseCells())
}

// CoverageFrom is like Coverage but only explores the given root cells,
// which must be non-overlapping and sorted along the z-order curve. It lets
// callers split a query over independent subsets of the sphere.
func CoverageFrom(r Region, depth uint8, roots []Cell) ([]Cell, error) {
	if _, err := Get(depth); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: nil region", ErrInvalidCoordinate)
	}
	stack := make([]Cell, 0, len(roots)+4*MaxDepth)
	for k := len(roots) - 1; k >= 0; k-- {
		c := roots[k]
		if !c.Valid() {
			return nil, fmt.Errorf("%w: root %s", ErrInvalidCell, c)
		}
		if c.Depth > depth {
			return nil, fmt.Errorf("%w: root %s deeper than %d", ErrInvalidDepth, c, depth)
		}
		stack = append(stack, c)
	}

	var out []Cell
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		g := newCellGeom(c.Layer(), c.Hash)
		switch r.relate(g) {
		case disjoint:
			continue
		case contained:
			out = append(out, c)
			continue
		}
		if c.Depth == depth {
			if r.intersects(g) {
				out = append(out, c)
			}
			continue
		}
		// children pushed last-first so that they pop in z-order
		first := c.Hash << 2
		for k := uint64(4); k > 0; k-- {
			stack = append(stack, Cell{Depth: c.Depth + 1, Hash: first + k - 1})
		}
	}
	return out, nil
}

// Flatten expands cells of depth <= depth into the sorted list of their
// descendants at depth.
func Flatten(cells []Cell, depth uint8) ([]uint64, error) {
	if _, err := Get(depth); err != nil {
		return nil, err
	}
	var n uint64
	for _, c := range cells {
		if c.Depth > depth {
			return nil, fmt.Errorf("%w: %s deeper than %d", ErrInvalidDepth, c, depth)
		}
		n += uint64(1) << (2 * uint(depth-c.Depth))
	}
	out := make([]uint64, 0, n)
	for _, c := range cells {
		shift := 2 * uint(depth-c.Depth)
		for h := c.Hash << shift; h < (c.Hash+1)<<shift; h++ {
			out = append(out, h)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// ConeSearch returns the sorted cells of the given depth intersecting the
// cone.
func ConeSearch(lon, lat, radius float64, depth uint8) ([]uint64, error) {
	c, err := NewCone(lon, lat, radius)
	if err != nil {
		return nil, err
	}
	return search(c, depth)
}

// PolygonSearch returns the sorted cells of the given depth intersecting
// the polygon.
func PolygonSearch(vertices []LonLat, depth uint8) ([]uint64, error) {
	p, err := NewPolygon(vertices)
	if err != nil {
		return nil, err
	}
	return search(p, depth)
}

// ZoneSearch returns the sorted cells of the given depth intersecting the
// zone.
func ZoneSearch(lonMin, latMin, lonMax, latMax float64, depth uint8) ([]uint64, error) {
	z, err := NewZone(lonMin, latMin, lonMax, latMax)
	if err != nil {
		return nil, err
	}
	return search(z, depth)
}

func search(r Region, depth uint8) ([]uint64, error) {
	cells, err := Coverage(r, depth)
	if err != nil {
		return nil, err
	}
	return Flatten(cells, depth)
}
