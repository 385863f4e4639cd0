package moc

import (
	"cmp"
	"fmt"
	"math/bits"
	"slices"

	"github.com/mohammed-shakir/healpix-moc/pkg/healpix"
)

// Builder accumulates cells and normalizes them on Build. The first error
// met by an Add method sticks: later calls are no-ops returning it, and
// Build fails with it.
type Builder struct {
	depth uint8
	cells []healpix.Cell
	err   error
}

// NewBuilder returns a builder for a MOC of the given maximum depth.
func NewBuilder(depth uint8) (*Builder, error) {
	if err := checkDepth(depth); err != nil {
		return nil, err
	}
	return &Builder{depth: depth}, nil
}

func (b *Builder) Add(depth uint8, hash uint64) error {
	return b.AddCell(healpix.Cell{Depth: depth, Hash: hash})
}

func (b *Builder) AddCell(c healpix.Cell) error {
	if b.err != nil {
		return b.err
	}
	if err := b.check(c.Depth); err != nil {
		return err
	}
	if !c.Valid() {
		b.err = fmt.Errorf("%w: %s", ErrInvalidCell, c)
		return b.err
	}
	b.cells = append(b.cells, c)
	return nil
}

func (b *Builder) AddCells(cells []healpix.Cell) error {
	for _, c := range cells {
		if err := b.AddCell(c); err != nil {
			return err
		}
	}
	return b.err
}

// AddRange adds the cells [start, end) of the given depth, collapsed into
// the fewest cells.
func (b *Builder) AddRange(depth uint8, start, end uint64) error {
	if b.err != nil {
		return b.err
	}
	if err := b.check(depth); err != nil {
		return err
	}
	if start > end || end > healpix.MustGet(depth).NHash() {
		b.err = fmt.Errorf("%w: range %d/%d-%d", ErrInvalidCell, depth, start, end)
		return b.err
	}
	shift := 2 * uint(healpix.MaxDepth-depth)
	b.cells = appendRange(b.cells, start<<shift, end<<shift)
	return nil
}

func (b *Builder) check(depth uint8) error {
	if depth > b.depth {
		b.err = fmt.Errorf("%w: cell depth %d > moc depth %d", healpix.ErrInvalidDepth, depth, b.depth)
		return b.err
	}
	return nil
}

// Len is the number of cells added so far, before normalization.
func (b *Builder) Len() int { return len(b.cells) }

// Build normalizes the accumulated cells into a MOC. The builder can keep
// being used afterwards.
func (b *Builder) Build() (*MOC, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &MOC{depth: b.depth, cells: normalize(slices.Clone(b.cells))}, nil
}

// normalize sorts the cells, drops the ones covered by another and merges
// complete groups of 4 siblings into their parent, cascading up. It sorts
// cells in place and returns a new slice.
func normalize(cells []healpix.Cell) []healpix.Cell {
	slices.SortFunc(cells, func(a, b healpix.Cell) int {
		sa, _ := a.Range()
		sb, _ := b.Range()
		if c := cmp.Compare(sa, sb); c != 0 {
			return c
		}
		return cmp.Compare(a.Depth, b.Depth)
	})

	// Two cells overlap only if one contains the other, and ancestors sort
	// first, so a cell starting before the end of the last kept cell lies
	// in it.
	out := make([]healpix.Cell, 0, len(cells))
	var end uint64
	for _, c := range cells {
		s, e := c.Range()
		if len(out) > 0 && s < end {
			continue
		}
		out = append(out, c)
		end = e

		for len(out) >= 4 {
			n := len(out)
			last := out[n-1]
			if last.Depth == 0 || last.Hash&3 != 3 {
				break
			}
			if !siblings(out[n-4:]) {
				break
			}
			out = append(out[:n-4], healpix.Cell{Depth: last.Depth - 1, Hash: last.Hash >> 2})
		}
	}
	return out
}

// siblings reports whether the 4 cells are the children 0..3 of one parent.
func siblings(cs []healpix.Cell) bool {
	first := cs[0]
	if first.Hash&3 != 0 {
		return false
	}
	for k := 1; k < 4; k++ {
		if cs[k].Depth != first.Depth || cs[k].Hash != first.Hash+uint64(k) {
			return false
		}
	}
	return true
}

// appendRange appends the fewest cells covering the depth 29 range
// [start, end). The bounds must be aligned on the deepest cell wanted.
func appendRange(out []healpix.Cell, start, end uint64) []healpix.Cell {
	for start < end {
		level := uint(healpix.MaxDepth)
		if start != 0 {
			level = min(level, uint(bits.TrailingZeros64(start))/2)
		}
		for start+uint64(1)<<(2*level) > end {
			level--
		}
		out = append(out, healpix.Cell{Depth: uint8(healpix.MaxDepth - level), Hash: start >> (2 * level)})
		start += uint64(1) << (2 * level)
	}
	return out
}
