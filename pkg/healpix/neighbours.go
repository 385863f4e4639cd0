package healpix

import (
	"slices"

	"github.com/mohammed-shakir/healpix-moc/pkg/zorder"
)

// Direction is one of the 8 main winds around a cell, plus C, the cell
// itself. The value is 4 + di + 3*dj for a step (di, dj) along the
// face-local axes.
type Direction uint8

const (
	S Direction = iota
	SE
	E
	SW
	C
	NE
	W
	NW
	N
)

var mainWinds = [8]Direction{S, SE, E, SW, NE, W, NW, N}

var directionNames = [9]string{"S", "SE", "E", "SW", "C", "NE", "W", "NW", "N"}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return "?"
}

// Opposite returns the direction pointing the other way.
func (d Direction) Opposite() Direction { return N - d }

func (d Direction) offsets() (di, dj int64) {
	return int64(d)%3 - 1, int64(d)/3 - 1
}

// Base face reached when stepping out of a face, indexed by the direction
// of the step (S..N) and by the starting face. -1: no cell there.
var nbFace = [9][NBaseCells]int8{
	{8, 9, 10, 11, -1, -1, -1, -1, 10, 11, 8, 9}, // S
	{5, 6, 7, 4, 8, 9, 10, 11, 9, 10, 11, 8},     // SE
	{-1, -1, -1, -1, 5, 6, 7, 4, -1, -1, -1, -1}, // E
	{4, 5, 6, 7, 11, 8, 9, 10, 11, 8, 9, 10},     // SW
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},       // C
	{1, 2, 3, 0, 0, 1, 2, 3, 5, 6, 7, 4},         // NE
	{-1, -1, -1, -1, 7, 4, 5, 6, -1, -1, -1, -1}, // W
	{3, 0, 1, 2, 3, 0, 1, 2, 4, 5, 6, 7},         // NW
	{2, 3, 0, 1, -1, -1, -1, -1, 0, 1, 2, 3},     // N
}

// Axis remapping applied to the wrapped (i, j) once in the neighbour face,
// indexed by direction and by the row of the starting face (north,
// equatorial, south). Bit 1 flips i, bit 2 flips j, bit 4 swaps i and j.
var nbSwap = [9][3]uint8{
	{0, 0, 3}, // S
	{0, 0, 6}, // SE
	{0, 0, 0}, // E
	{0, 0, 5}, // SW
	{0, 0, 0}, // C
	{5, 0, 0}, // NE
	{0, 0, 0}, // W
	{6, 0, 0}, // NW
	{3, 0, 0}, // N
}

// Neighbours holds the cells surrounding a cell at the same depth.
type Neighbours struct {
	center  uint64
	hashes  [9]uint64
	present [9]bool
}

// Get returns the neighbour in the given direction. Around the face
// corners where only 3 faces meet, one direction has no cell.
func (n Neighbours) Get(d Direction) (uint64, bool) {
	if d == C {
		return n.center, true
	}
	if int(d) >= len(n.hashes) {
		return 0, false
	}
	return n.hashes[d], n.present[d]
}

// Len is the number of neighbours: 8, or fewer around the face corners
// where only 3 faces meet.
func (n Neighbours) Len() int {
	c := 0
	for _, d := range mainWinds {
		if n.present[d] {
			c++
		}
	}
	return c
}

// Each calls fn for every existing neighbour, in direction order.
func (n Neighbours) Each(fn func(d Direction, hash uint64)) {
	for _, d := range mainWinds {
		if n.present[d] {
			fn(d, n.hashes[d])
		}
	}
}

// Sorted returns the neighbour hashes in ascending order.
func (n Neighbours) Sorted() []uint64 {
	out := make([]uint64, 0, 8)
	n.Each(func(_ Direction, h uint64) { out = append(out, h) })
	slices.Sort(out)
	return out
}

// Neighbours returns the cells sharing an edge or a vertex with the given
// cell.
func (l *Layer) Neighbours(hash uint64) (Neighbours, error) {
	if err := l.checkHash(hash); err != nil {
		return Neighbours{}, err
	}
	return l.neighbours(hash), nil
}

func (l *Layer) neighbours(hash uint64) Neighbours {
	face, i, j := l.decode(hash)
	n := int64(l.nside)
	out := Neighbours{center: hash}
	for _, d := range mainWinds {
		di, dj := d.offsets()
		x, y := int64(i)+di, int64(j)+dj
		if x >= 0 && x < n && y >= 0 && y < n {
			out.hashes[d] = uint64(face)<<l.twiceDepth | zorder.Encode(uint32(x), uint32(y))
			out.present[d] = true
			continue
		}
		step := 4
		if x < 0 {
			x += n
			step--
		} else if x >= n {
			x -= n
			step++
		}
		if y < 0 {
			y += n
			step -= 3
		} else if y >= n {
			y -= n
			step += 3
		}
		f := nbFace[step][face]
		if f < 0 {
			continue
		}
		bits := nbSwap[step][face>>2]
		if bits&1 != 0 {
			x = n - x - 1
		}
		if bits&2 != 0 {
			y = n - y - 1
		}
		if bits&4 != 0 {
			x, y = y, x
		}
		out.hashes[d] = uint64(f)<<l.twiceDepth | zorder.Encode(uint32(x), uint32(y))
		out.present[d] = true
	}
	return out
}
