package healpix

import (
	"fmt"
	"math"
)

// Zone is the set of positions with lonMin <= lon <= lonMax and
// latMin <= lat <= latMax. A zone with lonMin > lonMax crosses the
// 0-meridian; lonMax - lonMin >= 2π covers all longitudes.
type Zone struct {
	lonMin, latMin float64
	lonMax, latMax float64
	fullLon        bool
}

func NewZone(lonMin, latMin, lonMax, latMax float64) (*Zone, error) {
	for _, lat := range []float64{latMin, latMax} {
		if math.IsNaN(lat) || lat < -halfPi || lat > halfPi {
			return nil, fmt.Errorf("%w: zone latitude %v outside [-π/2, π/2]", ErrInvalidCoordinate, lat)
		}
	}
	if latMin > latMax {
		return nil, fmt.Errorf("%w: zone latMin %v > latMax %v", ErrInvalidCoordinate, latMin, latMax)
	}
	for _, lon := range []float64{lonMin, lonMax} {
		if math.IsNaN(lon) || math.IsInf(lon, 0) {
			return nil, fmt.Errorf("%w: zone longitude %v", ErrInvalidCoordinate, lon)
		}
	}
	z := &Zone{latMin: latMin, latMax: latMax}
	if lonMax-lonMin >= twoPi {
		z.fullLon = true
		z.lonMin, z.lonMax = 0, twoPi
		return z, nil
	}
	z.lonMin, z.lonMax = normalizeLon(lonMin), normalizeLon(lonMax)
	return z, nil
}

func (z *Zone) String() string {
	return describe("zone", z.lonMin, z.latMin, z.lonMax, z.latMax)
}

// Contains reports whether the position lies in the zone.
func (z *Zone) Contains(lon, lat float64) bool {
	lon, err := checkCoord(lon, lat)
	if err != nil {
		return false
	}
	return z.contains(lon, lat)
}

func (z *Zone) contains(lon, lat float64) bool {
	return lat >= z.latMin && lat <= z.latMax && z.lonIn(lon)
}

func (z *Zone) lonIn(lon float64) bool {
	switch {
	case z.fullLon:
		return true
	case z.lonMin <= z.lonMax:
		return lon >= z.lonMin && lon <= z.lonMax
	default:
		return lon >= z.lonMin || lon <= z.lonMax
	}
}

// meridians returns the meridian edges of the zone, each split in two arcs
// so that no arc joins antipodal points.
func (z *Zone) meridians() [][2]vec3 {
	if z.fullLon {
		return nil
	}
	mid := (z.latMin + z.latMax) / 2
	var out [][2]vec3
	for _, lon := range []float64{z.lonMin, z.lonMax} {
		lo, m, hi := toVec(lon, z.latMin), toVec(lon, mid), toVec(lon, z.latMax)
		out = append(out, [2]vec3{lo, m}, [2]vec3{m, hi})
	}
	return out
}

// parallels returns the latitudes of the parallel edges of the zone; a
// parallel at a pole is a point, already covered by the meridians.
func (z *Zone) parallels() []float64 {
	var out []float64
	if z.latMin > -halfPi {
		out = append(out, z.latMin)
	}
	if z.latMax < halfPi && z.latMax != z.latMin {
		out = append(out, z.latMax)
	}
	return out
}

// boundaryDist is the angular distance from v to the zone boundary.
func (z *Zone) boundaryDist(v vec3) float64 {
	d := math.Inf(1)
	for _, m := range z.meridians() {
		d = math.Min(d, distToArc(v, m[0], m[1]))
	}
	p := v.lonLat()
	for _, lat := range z.parallels() {
		if z.lonIn(p.Lon) {
			d = math.Min(d, math.Abs(p.Lat-lat))
			continue
		}
		d = math.Min(d, angDist(v, toVec(z.lonMin, lat)))
		d = math.Min(d, angDist(v, toVec(z.lonMax, lat)))
	}
	return d
}

func (z *Zone) relate(g *cellGeom) relation {
	if z.boundaryDist(g.center) <= g.radius {
		return partial
	}
	p := g.center.lonLat()
	if z.contains(p.Lon, p.Lat) {
		return contained
	}
	return disjoint
}

func (z *Zone) intersects(g *cellGeom) bool {
	for _, b := range g.boundary {
		p := b.lonLat()
		if z.contains(p.Lon, p.Lat) {
			return true
		}
	}
	for _, lon := range []float64{z.lonMin, z.lonMax} {
		for _, lat := range []float64{z.latMin, z.latMax} {
			if g.holds(LonLat{Lon: lon, Lat: lat}) {
				return true
			}
		}
	}
	meridians := z.meridians()
	parallels := z.parallels()
	return g.segments(func(a, b vec3) bool {
		for _, m := range meridians {
			if arcsIntersect(a, b, m[0], m[1]) {
				return true
			}
		}
		pa, pb := a.lonLat(), b.lonLat()
		for _, lat := range parallels {
			if (pa.Lat-lat)*(pb.Lat-lat) > 0 || pa.Lat == pb.Lat {
				continue
			}
			t := (lat - pa.Lat) / (pb.Lat - pa.Lat)
			dlon := pb.Lon - pa.Lon
			if dlon > math.Pi {
				dlon -= twoPi
			} else if dlon < -math.Pi {
				dlon += twoPi
			}
			if z.lonIn(normalizeLon(pa.Lon + t*dlon)) {
				return true
			}
		}
		return false
	})
}
