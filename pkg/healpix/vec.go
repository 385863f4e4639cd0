package healpix

import "math"

// vec3 is a point of the unit sphere (or a great-circle pole) in cartesian
// coordinates.
type vec3 struct {
	x, y, z float64
}

func toVec(lon, lat float64) vec3 {
	cl := math.Cos(lat)
	return vec3{cl * math.Cos(lon), cl * math.Sin(lon), math.Sin(lat)}
}

func (p LonLat) vec() vec3 { return toVec(p.Lon, p.Lat) }

func (v vec3) lonLat() LonLat {
	lon := math.Atan2(v.y, v.x)
	if lon < 0 {
		lon += twoPi
	}
	if lon >= twoPi {
		lon = 0
	}
	lat := math.Atan2(v.z, math.Hypot(v.x, v.y))
	return LonLat{Lon: lon, Lat: lat}
}

func (v vec3) add(o vec3) vec3 { return vec3{v.x + o.x, v.y + o.y, v.z + o.z} }

func (v vec3) sub(o vec3) vec3 { return vec3{v.x - o.x, v.y - o.y, v.z - o.z} }

func (v vec3) scale(k float64) vec3 { return vec3{v.x * k, v.y * k, v.z * k} }

func (v vec3) neg() vec3 { return vec3{-v.x, -v.y, -v.z} }

func (v vec3) dot(o vec3) float64 { return v.x*o.x + v.y*o.y + v.z*o.z }

func (v vec3) cross(o vec3) vec3 {
	return vec3{
		v.y*o.z - v.z*o.y,
		v.z*o.x - v.x*o.z,
		v.x*o.y - v.y*o.x,
	}
}

func (v vec3) norm() float64 { return math.Sqrt(v.dot(v)) }

func (v vec3) normalize() vec3 {
	n := v.norm()
	if n == 0 {
		return v
	}
	return v.scale(1 / n)
}

// angDist is the angular distance between two unit vectors, accurate for
// both small and large angles.
func angDist(a, b vec3) float64 {
	d := a.sub(b).norm() * 0.5
	if d >= 1 {
		return math.Pi
	}
	return 2 * math.Asin(d)
}

// onArc reports whether p, a point of the great circle of pole n = a×b,
// lies on the minor arc from a to b.
func onArc(p, a, b, n vec3) bool {
	return a.cross(p).dot(n) >= 0 && p.cross(b).dot(n) >= 0
}

// arcsIntersect reports whether the minor arcs [a, b] and [c, d] cross.
func arcsIntersect(a, b, c, d vec3) bool {
	n1 := a.cross(b)
	n2 := c.cross(d)
	t := n1.cross(n2)
	if t.dot(t) < 1e-30 {
		return false
	}
	t = t.normalize()
	if onArc(t, a, b, n1) && onArc(t, c, d, n2) {
		return true
	}
	t = t.neg()
	return onArc(t, a, b, n1) && onArc(t, c, d, n2)
}

// distToArc is the angular distance from p to the minor arc [a, b].
func distToArc(p, a, b vec3) float64 {
	n := a.cross(b)
	if n.dot(n) < 1e-30 {
		return math.Min(angDist(p, a), angDist(p, b))
	}
	n = n.normalize()
	pn := p.dot(n)
	q := p.sub(n.scale(pn))
	if q.dot(q) < 1e-30 {
		return halfPi
	}
	q = q.normalize()
	if onArc(q, a, b, n) {
		return math.Abs(math.Asin(math.Max(-1, math.Min(1, pn))))
	}
	return math.Min(angDist(p, a), angDist(p, b))
}
