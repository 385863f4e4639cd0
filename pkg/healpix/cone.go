package healpix

import (
	"fmt"
	"math"
)

// Cone is the spherical cap of given angular radius around a center.
type Cone struct {
	center LonLat
	vec    vec3
	radius float64
}

// NewCone returns the cone of the given radius in radians around (lon, lat).
func NewCone(lon, lat, radius float64) (*Cone, error) {
	lon, err := checkCoord(lon, lat)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(radius) || radius < 0 || radius > math.Pi {
		return nil, fmt.Errorf("%w: cone radius %v outside [0, π]", ErrInvalidCoordinate, radius)
	}
	return &Cone{
		center: LonLat{Lon: lon, Lat: lat},
		vec:    toVec(lon, lat),
		radius: radius,
	}, nil
}

func (c *Cone) Center() LonLat  { return c.center }
func (c *Cone) Radius() float64 { return c.radius }
func (c *Cone) String() string {
	return describe("cone", c.center.Lon, c.center.Lat, c.radius)
}

// Contains reports whether the position lies in the cone.
func (c *Cone) Contains(lon, lat float64) bool {
	lon, err := checkCoord(lon, lat)
	if err != nil {
		return false
	}
	return angDist(c.vec, toVec(lon, lat)) <= c.radius
}

func (c *Cone) relate(g *cellGeom) relation {
	d := angDist(c.vec, g.center)
	switch {
	case d > c.radius+g.radius:
		return disjoint
	case d+g.radius <= c.radius:
		return contained
	default:
		return partial
	}
}

func (c *Cone) intersects(g *cellGeom) bool {
	if g.holds(c.center) {
		return true
	}
	return g.segments(func(a, b vec3) bool {
		return distToArc(c.vec, a, b) <= c.radius
	})
}
