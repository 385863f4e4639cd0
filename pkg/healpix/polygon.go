package healpix

import (
	"fmt"
	"math"
)

// minEdgeLength is the shortest polygon edge accepted, in radians.
const minEdgeLength = 1e-12

// refOffset is how far from the first edge, toward its left side, the
// reference point of the point-in-polygon test is taken.
const refOffset = 1e-9

// Polygon is a simple spherical polygon with great-circle edges. The
// vertices are implicitly closed. The interior is on the left of the edges
// when walking them as seen from outside the sphere, that is, vertices go
// counter-clockwise around the interior. A clockwise ring therefore denotes
// everything but the area it encloses.
type Polygon struct {
	vertices []LonLat
	pts      []vec3
	// reference points known to be inside
	ref  vec3
	ref2 vec3
}

// NewPolygon validates the ring and builds the polygon. A closing vertex
// equal to the first one is dropped. Rings with fewer than 3 vertices,
// repeated or antipodal consecutive vertices, or crossing edges fail with
// ErrInvalidCoordinate.
func NewPolygon(vertices []LonLat) (*Polygon, error) {
	vs := make([]LonLat, 0, len(vertices))
	for _, v := range vertices {
		lon, err := checkCoord(v.Lon, v.Lat)
		if err != nil {
			return nil, err
		}
		vs = append(vs, LonLat{Lon: lon, Lat: v.Lat})
	}
	// drop duplicated closing vertex if present
	if len(vs) >= 2 && angDist(vs[0].vec(), vs[len(vs)-1].vec()) < minEdgeLength {
		vs = vs[:len(vs)-1]
	}
	if len(vs) < 3 {
		return nil, fmt.Errorf("%w: polygon has %d distinct vertices (min 3)", ErrInvalidCoordinate, len(vs))
	}

	p := &Polygon{vertices: vs, pts: make([]vec3, len(vs))}
	for k, v := range vs {
		p.pts[k] = v.vec()
	}
	n := len(p.pts)
	for k := 0; k < n; k++ {
		d := angDist(p.pts[k], p.pts[(k+1)%n])
		if d < minEdgeLength {
			return nil, fmt.Errorf("%w: polygon vertices %d and %d coincide", ErrInvalidCoordinate, k, (k+1)%n)
		}
		if d > math.Pi-minEdgeLength {
			return nil, fmt.Errorf("%w: polygon vertices %d and %d are antipodal", ErrInvalidCoordinate, k, (k+1)%n)
		}
	}
	if err := p.checkSimple(); err != nil {
		return nil, err
	}
	p.ref = p.leftOf(0)
	p.ref2 = p.leftOf(1)
	return p, nil
}

// checkSimple rejects rings whose non-adjacent edges cross.
func (p *Polygon) checkSimple() error {
	n := len(p.pts)
	for a := 0; a < n; a++ {
		for b := a + 2; b < n; b++ {
			if a == 0 && b == n-1 {
				continue
			}
			if arcsIntersect(p.pts[a], p.pts[(a+1)%n], p.pts[b], p.pts[(b+1)%n]) {
				return fmt.Errorf("%w: polygon edges %d and %d intersect", ErrInvalidCoordinate, a, b)
			}
		}
	}
	return nil
}

// leftOf returns a point just left of the middle of edge k.
func (p *Polygon) leftOf(k int) vec3 {
	a, b := p.pts[k], p.pts[(k+1)%len(p.pts)]
	mid := a.add(b).normalize()
	left := a.cross(b).normalize()
	return mid.add(left.scale(refOffset)).normalize()
}

func (p *Polygon) Vertices() []LonLat {
	out := make([]LonLat, len(p.vertices))
	copy(out, p.vertices)
	return out
}

func (p *Polygon) String() string {
	vs := make([]float64, 0, 2*len(p.vertices))
	for _, v := range p.vertices {
		vs = append(vs, v.Lon, v.Lat)
	}
	return describe("polygon", vs...)
}

// Contains reports whether the position lies inside the polygon.
func (p *Polygon) Contains(lon, lat float64) bool {
	lon, err := checkCoord(lon, lat)
	if err != nil {
		return false
	}
	return p.contains(toVec(lon, lat))
}

// contains counts the edges crossed on the way from a reference point
// known to be inside.
func (p *Polygon) contains(v vec3) bool {
	ref := p.ref
	if angDist(ref, v) > math.Pi-1e-6 {
		ref = p.ref2
	}
	if angDist(ref, v) < 1e-15 {
		return true
	}
	n := len(p.pts)
	crossings := 0
	for k := 0; k < n; k++ {
		if arcsIntersect(ref, v, p.pts[k], p.pts[(k+1)%n]) {
			crossings++
		}
	}
	return crossings%2 == 0
}

func (p *Polygon) edgeDist(v vec3) float64 {
	n := len(p.pts)
	d := math.Inf(1)
	for k := 0; k < n; k++ {
		d = math.Min(d, distToArc(v, p.pts[k], p.pts[(k+1)%n]))
	}
	return d
}

func (p *Polygon) relate(g *cellGeom) relation {
	if p.edgeDist(g.center) <= g.radius {
		return partial
	}
	if p.contains(g.center) {
		return contained
	}
	return disjoint
}

func (p *Polygon) intersects(g *cellGeom) bool {
	for _, b := range g.boundary {
		if p.contains(b) {
			return true
		}
	}
	for _, v := range p.vertices {
		if g.holds(v) {
			return true
		}
	}
	n := len(p.pts)
	return g.segments(func(a, b vec3) bool {
		for k := 0; k < n; k++ {
			if arcsIntersect(a, b, p.pts[k], p.pts[(k+1)%n]) {
				return true
			}
		}
		return false
	})
}
