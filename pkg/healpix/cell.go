package healpix

import (
	"cmp"
	"fmt"
	"math/bits"
)

// Cell is a cell of a given depth.
type Cell struct {
	Depth uint8
	Hash  uint64
}

func NewCell(depth uint8, hash uint64) (Cell, error) {
	l, err := Get(depth)
	if err != nil {
		return Cell{}, err
	}
	if err := l.checkHash(hash); err != nil {
		return Cell{}, err
	}
	return Cell{Depth: depth, Hash: hash}, nil
}

// BaseCells returns the 12 cells of depth 0.
func BaseCells() []Cell {
	out := make([]Cell, NBaseCells)
	for i := range out {
		out[i] = Cell{Depth: 0, Hash: uint64(i)}
	}
	return out
}

func (c Cell) Valid() bool {
	return c.Depth <= MaxDepth && c.Hash < NBaseCells<<(2*uint(c.Depth))
}

func (c Cell) String() string {
	return fmt.Sprintf("%d/%d", c.Depth, c.Hash)
}

// Layer returns the layer of the cell depth. The cell must be valid.
func (c Cell) Layer() *Layer { return &layers[c.Depth] }

// Range returns the half-open range [start, end) of the depth 29 cells
// covered by c.
func (c Cell) Range() (start, end uint64) {
	shift := 2 * uint(MaxDepth-c.Depth)
	return c.Hash << shift, (c.Hash + 1) << shift
}

// Parent returns the ancestor of c at the given depth.
func (c Cell) Parent(depth uint8) (Cell, error) {
	if depth > c.Depth {
		return Cell{}, fmt.Errorf("%w: parent depth %d must be <= cell depth %d", ErrInvalidDepth, depth, c.Depth)
	}
	return Cell{Depth: depth, Hash: c.Hash >> (2 * uint(c.Depth-depth))}, nil
}

// maxChildrenSpan bounds the number of depth levels Children expands, 4^12
// cells per call.
const maxChildrenSpan = 12

// Children returns the descendants of c at the given depth, in ascending
// order.
func (c Cell) Children(depth uint8) ([]Cell, error) {
	if depth < c.Depth || depth > MaxDepth {
		return nil, fmt.Errorf("%w: children depth %d must be in %d..%d", ErrInvalidDepth, depth, c.Depth, MaxDepth)
	}
	delta := uint(depth - c.Depth)
	if delta > maxChildrenSpan {
		return nil, fmt.Errorf("%w: %d levels between %s and depth %d (max %d)", ErrInvalidDepth, delta, c, depth, maxChildrenSpan)
	}
	n := uint64(1) << (2 * delta)
	first := c.Hash << (2 * delta)
	out := make([]Cell, n)
	for k := range out {
		out[k] = Cell{Depth: depth, Hash: first + uint64(k)}
	}
	return out, nil
}

// Contains reports whether o is c or one of its descendants.
func (c Cell) Contains(o Cell) bool {
	if o.Depth < c.Depth {
		return false
	}
	return o.Hash>>(2*uint(o.Depth-c.Depth)) == c.Hash
}

// Overlaps reports whether one of the cells contains the other.
func (c Cell) Overlaps(o Cell) bool {
	return c.Contains(o) || o.Contains(c)
}

// ZUniq packs depth and hash in a single value whose natural order follows
// the z-order curve: ((hash << 1) | 1) << 2(29 - depth).
func (c Cell) ZUniq() uint64 {
	return ((c.Hash << 1) | 1) << (2 * uint(MaxDepth-c.Depth))
}

func FromZUniq(z uint64) (Cell, error) {
	if z == 0 {
		return Cell{}, fmt.Errorf("%w: zuniq 0", ErrInvalidCell)
	}
	tz := uint(bits.TrailingZeros64(z))
	if tz&1 != 0 || tz > 2*MaxDepth {
		return Cell{}, fmt.Errorf("%w: malformed zuniq %d", ErrInvalidCell, z)
	}
	c := Cell{Depth: uint8(MaxDepth - tz/2), Hash: z >> (tz + 1)}
	if !c.Valid() {
		return Cell{}, fmt.Errorf("%w: zuniq %d decodes to %s", ErrInvalidCell, z, c)
	}
	return c, nil
}

// Uniq is the IVOA NUNIQ index: 4*4^depth + hash.
func (c Cell) Uniq() uint64 {
	return (uint64(4) << (2 * uint(c.Depth))) + c.Hash
}

func FromUniq(u uint64) (Cell, error) {
	if u < 4 {
		return Cell{}, fmt.Errorf("%w: uniq %d", ErrInvalidCell, u)
	}
	depth := (bits.Len64(u) - 3) / 2
	if depth > MaxDepth {
		return Cell{}, fmt.Errorf("%w: uniq %d deeper than %d", ErrInvalidDepth, u, MaxDepth)
	}
	c := Cell{Depth: uint8(depth), Hash: u - uint64(4)<<(2*uint(depth))}
	if !c.Valid() {
		return Cell{}, fmt.Errorf("%w: uniq %d", ErrInvalidCell, u)
	}
	return c, nil
}

// CompareZ orders cells along the z-order curve, the canonical order of
// coverages.
func CompareZ(a, b Cell) int {
	return cmp.Compare(a.ZUniq(), b.ZUniq())
}

// AreOverlapping reports whether the cells of two zuniq values overlap.
func AreOverlapping(zl, zr uint64) bool {
	l, errl := FromZUniq(zl)
	r, errr := FromZUniq(zr)
	if errl != nil || errr != nil {
		return false
	}
	return l.Overlaps(r)
}
