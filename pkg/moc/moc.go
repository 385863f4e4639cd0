// Package moc implements Multi-Order Coverage maps: sky regions stored as
// normalized sets of HEALPix cells of mixed depths.
//
// A MOC is immutable. It is built with a Builder, derived from a region
// query or from set operations on other MOCs, or decoded from its binary or
// text forms.
package moc

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/mohammed-shakir/healpix-moc/pkg/healpix"
)

var (
	// ErrMalformedEncoding is returned when a serialized MOC fails a
	// structural check.
	ErrMalformedEncoding = errors.New("malformed moc encoding")
	// ErrInvalidCell is returned for a cell whose hash is out of range for
	// its depth.
	ErrInvalidCell = healpix.ErrInvalidCell
)

// MOC is a normalized coverage: its cells are sorted along the z-order
// curve, no cell contains another and no 4 siblings are all present.
type MOC struct {
	depth uint8
	cells []healpix.Cell
}

func checkDepth(depth uint8) error {
	if depth > healpix.MaxDepth {
		return fmt.Errorf("%w: moc depth %d > %d", healpix.ErrInvalidDepth, depth, healpix.MaxDepth)
	}
	return nil
}

// Empty returns the MOC covering nothing.
func Empty(depth uint8) (*MOC, error) {
	if err := checkDepth(depth); err != nil {
		return nil, err
	}
	return &MOC{depth: depth}, nil
}

// Full returns the MOC covering the whole sphere: the 12 base cells.
func Full(depth uint8) (*MOC, error) {
	if err := checkDepth(depth); err != nil {
		return nil, err
	}
	return &MOC{depth: depth, cells: healpix.BaseCells()}, nil
}

// FromCells builds a MOC from cells in any order, possibly overlapping.
func FromCells(depth uint8, cells []healpix.Cell) (*MOC, error) {
	b, err := NewBuilder(depth)
	if err != nil {
		return nil, err
	}
	if err := b.AddCells(cells); err != nil {
		return nil, err
	}
	return b.Build()
}

// FromRegion builds the MOC of the cells of depth at most depth that
// intersect the region.
func FromRegion(r healpix.Region, depth uint8) (*MOC, error) {
	cells, err := healpix.Coverage(r, depth)
	if err != nil {
		return nil, err
	}
	return &MOC{depth: depth, cells: normalize(cells)}, nil
}

// Depth is the maximum depth of the MOC: no cell is deeper.
func (m *MOC) Depth() uint8 { return m.depth }

// Len is the number of cells.
func (m *MOC) Len() int { return len(m.cells) }

func (m *MOC) IsEmpty() bool { return len(m.cells) == 0 }

func (m *MOC) IsFull() bool {
	if len(m.cells) != healpix.NBaseCells {
		return false
	}
	for _, c := range m.cells {
		if c.Depth != 0 {
			return false
		}
	}
	return true
}

// Cells returns a copy of the normalized cell list.
func (m *MOC) Cells() []healpix.Cell {
	return slices.Clone(m.cells)
}

// Each calls fn for every cell in z-order until fn returns false.
func (m *MOC) Each(fn func(c healpix.Cell) bool) {
	for _, c := range m.cells {
		if !fn(c) {
			return
		}
	}
}

// CoveredArea is the area covered, in steradians.
func (m *MOC) CoveredArea() float64 {
	return m.SkyFraction() * 4 * math.Pi
}

// SkyFraction is the covered fraction of the sphere, in [0, 1].
func (m *MOC) SkyFraction() float64 {
	var n uint64
	for _, c := range m.cells {
		n += uint64(1) << (2 * uint(healpix.MaxDepth-c.Depth))
	}
	return float64(n) / float64(uint64(healpix.NBaseCells)<<(2*healpix.MaxDepth))
}

// Flatten expands the MOC into the sorted hashes of its cells at depth,
// which must not be lower than the MOC depth.
func (m *MOC) Flatten(depth uint8) ([]uint64, error) {
	if depth < m.depth {
		return nil, fmt.Errorf("%w: flatten depth %d < moc depth %d", healpix.ErrInvalidDepth, depth, m.depth)
	}
	return healpix.Flatten(m.cells, depth)
}

// Equal reports whether both MOCs have the same depth and the same cells.
func (m *MOC) Equal(o *MOC) bool {
	return m.depth == o.depth && slices.Equal(m.cells, o.cells)
}

// Contains reports whether the position falls in a cell of the MOC.
func (m *MOC) Contains(lon, lat float64) (bool, error) {
	h, err := healpix.MustGet(m.depth).Hash(lon, lat)
	if err != nil {
		return false, err
	}
	return m.ContainsCell(healpix.Cell{Depth: m.depth, Hash: h}), nil
}

// ContainsCell reports whether c is entirely covered by the MOC, that is
// whether c or one of its ancestors is a cell of the MOC.
//
// In a normalized list the covering cell, if any, is next to the position
// c would have in zuniq order: a cell is sorted between the cells of its
// range, and no other cell of the list can sit in that range.
func (m *MOC) ContainsCell(c healpix.Cell) bool {
	if !c.Valid() {
		return false
	}
	z := c.ZUniq()
	k := sort.Search(len(m.cells), func(i int) bool { return m.cells[i].ZUniq() >= z })
	if k < len(m.cells) && m.cells[k].Contains(c) {
		return true
	}
	return k > 0 && m.cells[k-1].Contains(c)
}

// String returns the ASCII serialization.
func (m *MOC) String() string {
	var b strings.Builder
	m.writeASCII(&b)
	return b.String()
}
