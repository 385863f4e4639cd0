// Package healpix implements the HEALPix tessellation of the sphere in the
// NESTED numbering scheme.
//
// The sphere is split into 12 base faces; each face is recursively split in
// 4 sub-cells, so that a depth d holds 12*4^d cells of equal area. A cell
// index at depth d is made of the base face number followed by the
// z-order interleaving of the face-local (i, j) coordinates of the cell,
// i pointing to the north-east and j to the north-west, with the origin at
// the south corner of the face.
//
// Longitudes and latitudes are in radians.
package healpix

import (
	"errors"
	"fmt"
	"math"

	"github.com/mohammed-shakir/healpix-moc/pkg/zorder"
)

const (
	// MaxDepth is the deepest depth a uint64 cell index can hold with room
	// left for the zuniq sentinel bit.
	MaxDepth = 29
	// NBaseCells is the number of cells at depth 0.
	NBaseCells = 12
)

var (
	ErrInvalidDepth      = errors.New("healpix: invalid depth")
	ErrInvalidCoordinate = errors.New("healpix: invalid coordinate")
	ErrInvalidCell       = errors.New("healpix: invalid cell")
)

const (
	halfPi     = math.Pi / 2
	twoPi      = 2 * math.Pi
	fourOverPi = 4 / math.Pi
	piOverFour = math.Pi / 4
	twoThirds  = 2.0 / 3.0
)

var sqrt6 = math.Sqrt(6)

// LonLat is a position on the unit sphere.
type LonLat struct {
	Lon float64
	Lat float64
}

func (p LonLat) String() string {
	return fmt.Sprintf("(%.12g, %.12g)", p.Lon, p.Lat)
}

// Layer holds the constants of a given depth. Layers are built once at
// package initialization and never modified.
type Layer struct {
	depth      uint8
	nside      uint32
	twiceDepth uint
	xyMask     uint64
	nHash      uint64
}

var layers [MaxDepth + 1]Layer

func init() {
	for d := range layers {
		nside := uint32(1) << d
		layers[d] = Layer{
			depth:      uint8(d),
			nside:      nside,
			twiceDepth: uint(2 * d),
			xyMask:     uint64(1)<<(2*d) - 1,
			nHash:      NBaseCells << (2 * d),
		}
	}
}

// Get returns the layer of the given depth.
func Get(depth uint8) (*Layer, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: %d (must be 0..%d)", ErrInvalidDepth, depth, MaxDepth)
	}
	return &layers[depth], nil
}

// MustGet is like Get but panics on an invalid depth.
func MustGet(depth uint8) *Layer {
	l, err := Get(depth)
	if err != nil {
		panic(err)
	}
	return l
}

// Depth returns the depth the layer was built for.
func (l *Layer) Depth() uint8 { return l.depth }

// NSide is the number of cells along a side of a base face.
func (l *Layer) NSide() uint32 { return l.nside }

// NHash is the number of cells at this depth.
func (l *Layer) NHash() uint64 { return l.nHash }

// CellArea is the area of every cell of this depth, in steradians.
func (l *Layer) CellArea() float64 {
	return 4 * math.Pi / float64(l.nHash)
}

func (l *Layer) checkHash(hash uint64) error {
	if hash >= l.nHash {
		return fmt.Errorf("%w: hash %d out of range at depth %d", ErrInvalidCell, hash, l.depth)
	}
	return nil
}

// Hash returns the index of the cell containing the given position.
//
// The longitude is taken modulo 2π. A position lying on the border of
// several cells is attributed by flooring its continuous face coordinates,
// so that each cell is half-open along both its i and j axes; coordinates
// reaching the far edge of a face (poles, face corners) are clamped to the
// last cell of the face.
func (l *Layer) Hash(lon, lat float64) (uint64, error) {
	lon, err := checkCoord(lon, lat)
	if err != nil {
		return 0, err
	}
	return l.hash(lon, lat), nil
}

func (l *Layer) hash(lon, lat float64) uint64 {
	face, i, j := l.faceIJ(lon, lat)
	return uint64(face)<<l.twiceDepth | zorder.Encode(i, j)
}

func (l *Layer) faceIJ(lon, lat float64) (face int, i, j uint32) {
	n := int64(l.nside)
	nf := float64(l.nside)

	x := lon * fourOverPi
	if x >= 8 {
		x -= 8
	}
	z := math.Sin(lat)
	za := math.Abs(z)

	if za <= twoThirds {
		y := 1.5 * z
		// coordinates along the ascending and descending edge lines
		vp := nf * (1 + x - y) * 0.5
		vm := nf * (1 + x + y) * 0.5
		ifp := int64(vp) >> l.depth
		ifm := int64(vm) >> l.depth
		switch {
		case ifp == ifm:
			face = int(ifp | 4)
		case ifp < ifm:
			face = int(ifp)
		default:
			face = int(ifm + 8)
		}
		// j decreases along vp; flooring its continuous value keeps j edges
		// half-open the same way as i edges.
		fj := float64((ifp+1)<<l.depth) - vp
		return face, uint32(int64(vm) & (n - 1)), clampCoord(fj, n)
	}

	ntt := int64(x * 0.5)
	if ntt > 3 {
		ntt = 3
	}
	tp := x*0.5 - float64(ntt)
	// sqrt(3(1-|z|)) without the cancellation near the poles
	sigma := math.Cos(lat) * math.Sqrt(3/(1+za))
	var fi, fj float64
	if z > 0 {
		face = int(ntt)
		fi = nf * (1 - (1-tp)*sigma)
		fj = nf * (1 - tp*sigma)
	} else {
		face = int(ntt + 8)
		fi = nf * tp * sigma
		fj = nf * (1 - tp) * sigma
	}
	return face, clampCoord(fi, n), clampCoord(fj, n)
}

func clampCoord(v float64, n int64) uint32 {
	k := int64(math.Floor(v))
	if k < 0 {
		return 0
	}
	if k >= n {
		return uint32(n - 1)
	}
	return uint32(k)
}

// Center returns the position of the center of the cell.
func (l *Layer) Center(hash uint64) (LonLat, error) {
	if err := l.checkHash(hash); err != nil {
		return LonLat{}, err
	}
	return l.center(hash), nil
}

func (l *Layer) center(hash uint64) LonLat {
	face, i, j := l.decode(hash)
	nf := float64(l.nside)
	return faceToLonLat(face, (float64(i)+0.5)/nf, (float64(j)+0.5)/nf)
}

// Vertices returns the 4 vertices of the cell, in the order south, east,
// north, west.
func (l *Layer) Vertices(hash uint64) ([4]LonLat, error) {
	if err := l.checkHash(hash); err != nil {
		return [4]LonLat{}, err
	}
	face, i, j := l.decode(hash)
	nf := float64(l.nside)
	a0, b0 := float64(i)/nf, float64(j)/nf
	a1, b1 := float64(i+1)/nf, float64(j+1)/nf
	return [4]LonLat{
		faceToLonLat(face, a0, b0),
		faceToLonLat(face, a1, b0),
		faceToLonLat(face, a1, b1),
		faceToLonLat(face, a0, b1),
	}, nil
}

// PathAlongCellEdge returns perSide points per side of the cell boundary,
// starting at the south vertex and turning counter-clockwise (seen from
// outside the sphere): south, east, north, west.
func (l *Layer) PathAlongCellEdge(hash uint64, perSide int) ([]LonLat, error) {
	if err := l.checkHash(hash); err != nil {
		return nil, err
	}
	if perSide < 1 {
		perSide = 1
	}
	face, i, j := l.decode(hash)
	path := make([]LonLat, 0, 4*perSide)
	l.walkEdge(face, i, j, perSide, func(a, b float64) {
		path = append(path, faceToLonLat(face, a, b))
	})
	return path, nil
}

func (l *Layer) walkEdge(face int, i, j uint32, perSide int, fn func(a, b float64)) {
	nf := float64(l.nside)
	a0, b0 := float64(i)/nf, float64(j)/nf
	step := 1 / (nf * float64(perSide))
	for k := 0; k < perSide; k++ { // south -> east
		fn(a0+float64(k)*step, b0)
	}
	for k := 0; k < perSide; k++ { // east -> north
		fn(a0+1/nf, b0+float64(k)*step)
	}
	for k := 0; k < perSide; k++ { // north -> west
		fn(a0+1/nf-float64(k)*step, b0+1/nf)
	}
	for k := 0; k < perSide; k++ { // west -> south
		fn(a0, b0+1/nf-float64(k)*step)
	}
}

func (l *Layer) decode(hash uint64) (face int, i, j uint32) {
	face = int(hash >> l.twiceDepth)
	i, j = zorder.Decode(hash & l.xyMask)
	return face, i, j
}

// faceToLonLat maps face-local coordinates, in units of the face side, to
// the sphere. a runs along the north-east axis and b along the north-west
// axis.
func faceToLonLat(face int, a, b float64) LonLat {
	row := face >> 2
	xc := float64(2*(face&3) + 1)
	yc := float64(1 - row)
	if row == 1 {
		xc--
	}
	x := xc + (a - b)
	y := yc + (a + b - 1)
	return unproject(x, y, xc)
}

// unproject inverts the HEALPix projection, where x lies in [0, 8) and y in
// [-2, 2]. xc is the center abscissa of the face the point belongs to.
func unproject(x, y, xc float64) LonLat {
	ay := math.Abs(y)
	if ay <= 1 {
		if x < 0 {
			x += 8
		} else if x >= 8 {
			x -= 8
		}
		return LonLat{Lon: x * piOverFour, Lat: math.Asin(y * twoThirds)}
	}
	sigma := 2 - ay
	lat := halfPi - 2*math.Asin(sigma/sqrt6)
	if y < 0 {
		lat = -lat
	}
	if sigma <= 0 {
		return LonLat{Lon: xc * piOverFour, Lat: lat}
	}
	lon := (xc + (x-xc)/sigma) * piOverFour
	return LonLat{Lon: normalizeLon(lon), Lat: lat}
}

func checkCoord(lon, lat float64) (float64, error) {
	if math.IsNaN(lat) || lat < -halfPi || lat > halfPi {
		return 0, fmt.Errorf("%w: latitude %v outside [-π/2, π/2]", ErrInvalidCoordinate, lat)
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return 0, fmt.Errorf("%w: longitude %v", ErrInvalidCoordinate, lon)
	}
	return normalizeLon(lon), nil
}

func normalizeLon(lon float64) float64 {
	if lon >= 0 && lon < twoPi {
		return lon
	}
	lon = math.Mod(lon, twoPi)
	if lon < 0 {
		lon += twoPi
	}
	if lon >= twoPi {
		lon = 0
	}
	return lon
}
