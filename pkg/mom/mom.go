// Package mom implements multi-order maps: values attached to
// non-overlapping HEALPix cells of mixed depths, sorted along the z-order
// curve.
package mom

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mohammed-shakir/healpix-moc/pkg/healpix"
	"github.com/mohammed-shakir/healpix-moc/pkg/moc"
)

// ErrInvalidMap is returned for entries that are unsorted or overlap.
var ErrInvalidMap = errors.New("invalid multi-order map")

type Entry[V any] struct {
	Cell  healpix.Cell
	Value V
}

// Map is an immutable multi-order map.
type Map[V any] struct {
	depth   uint8
	entries []Entry[V]
	zuniqs  []uint64
}

// New checks the entries and builds the map. Entries must be sorted by
// zuniq, must not overlap and must be no deeper than depth.
func New[V any](depth uint8, entries []Entry[V]) (*Map[V], error) {
	if depth > healpix.MaxDepth {
		return nil, fmt.Errorf("%w: map depth %d > %d", healpix.ErrInvalidDepth, depth, healpix.MaxDepth)
	}
	m := &Map[V]{
		depth:   depth,
		entries: make([]Entry[V], len(entries)),
		zuniqs:  make([]uint64, len(entries)),
	}
	copy(m.entries, entries)
	for k, e := range m.entries {
		if !e.Cell.Valid() {
			return nil, fmt.Errorf("%w: %s", healpix.ErrInvalidCell, e.Cell)
		}
		if e.Cell.Depth > depth {
			return nil, fmt.Errorf("%w: %s deeper than map depth %d", healpix.ErrInvalidDepth, e.Cell, depth)
		}
		m.zuniqs[k] = e.Cell.ZUniq()
		if k == 0 {
			continue
		}
		prev := m.entries[k-1].Cell
		if m.zuniqs[k-1] >= m.zuniqs[k] {
			return nil, fmt.Errorf("%w: %s not after %s", ErrInvalidMap, e.Cell, prev)
		}
		if prev.Overlaps(e.Cell) {
			return nil, fmt.Errorf("%w: %s overlaps %s", ErrInvalidMap, e.Cell, prev)
		}
	}
	return m, nil
}

// FromMOC attaches the same value to every cell of m.
func FromMOC[V any](m *moc.MOC, value V) *Map[V] {
	out := &Map[V]{depth: m.Depth()}
	m.Each(func(c healpix.Cell) bool {
		out.entries = append(out.entries, Entry[V]{Cell: c, Value: value})
		out.zuniqs = append(out.zuniqs, c.ZUniq())
		return true
	})
	return out
}

// FromSkyMap builds the map of a full-sky map holding one value per cell
// of depth, indexed by hash. Groups of 4 sibling cells holding equal values
// are merged into their parent, cascading up.
func FromSkyMap[V comparable](depth uint8, values []V) (*Map[V], error) {
	l, err := healpix.Get(depth)
	if err != nil {
		return nil, err
	}
	if uint64(len(values)) != l.NHash() {
		return nil, fmt.Errorf("%w: %d values for %d cells at depth %d", ErrInvalidMap, len(values), l.NHash(), depth)
	}
	m := &Map[V]{depth: depth}
	for h, v := range values {
		m.entries = append(m.entries, Entry[V]{Cell: healpix.Cell{Depth: depth, Hash: uint64(h)}, Value: v})
		for {
			n := len(m.entries)
			last := m.entries[n-1].Cell
			if n < 4 || last.Depth == 0 || last.Hash&3 != 3 || !mergeable(m.entries[n-4:]) {
				break
			}
			m.entries = append(m.entries[:n-4], Entry[V]{
				Cell:  healpix.Cell{Depth: last.Depth - 1, Hash: last.Hash >> 2},
				Value: m.entries[n-1].Value,
			})
		}
	}
	m.zuniqs = make([]uint64, len(m.entries))
	for k, e := range m.entries {
		m.zuniqs[k] = e.Cell.ZUniq()
	}
	return m, nil
}

func mergeable[V comparable](es []Entry[V]) bool {
	first := es[0]
	if first.Cell.Hash&3 != 0 {
		return false
	}
	for k := 1; k < 4; k++ {
		c := es[k].Cell
		if c.Depth != first.Cell.Depth || c.Hash != first.Cell.Hash+uint64(k) || es[k].Value != first.Value {
			return false
		}
	}
	return true
}

func (m *Map[V]) Depth() uint8 { return m.depth }

func (m *Map[V]) Len() int { return len(m.entries) }

// ZUniqs returns the zuniq values of the cells in order.
func (m *Map[V]) ZUniqs() []uint64 {
	out := make([]uint64, len(m.zuniqs))
	copy(out, m.zuniqs)
	return out
}

// Entries returns the entries in z-order.
func (m *Map[V]) Entries() []Entry[V] {
	out := make([]Entry[V], len(m.entries))
	copy(out, m.entries)
	return out
}

// CellContaining returns the entry whose cell contains c, which must be a
// cell of the map depth.
func (m *Map[V]) CellContaining(c healpix.Cell) (Entry[V], bool, error) {
	if c.Depth != m.depth {
		return Entry[V]{}, false, fmt.Errorf("%w: cell %s, map depth %d", healpix.ErrInvalidDepth, c, m.depth)
	}
	if !c.Valid() {
		return Entry[V]{}, false, fmt.Errorf("%w: %s", healpix.ErrInvalidCell, c)
	}
	z := c.ZUniq()
	k := sort.Search(len(m.zuniqs), func(i int) bool { return m.zuniqs[i] >= z })
	if k < len(m.entries) && m.entries[k].Cell.Contains(c) {
		return m.entries[k], true, nil
	}
	if k > 0 && m.entries[k-1].Cell.Contains(c) {
		return m.entries[k-1], true, nil
	}
	return Entry[V]{}, false, nil
}

// Get returns the entry of the cell holding the position.
func (m *Map[V]) Get(lon, lat float64) (Entry[V], bool, error) {
	h, err := healpix.MustGet(m.depth).Hash(lon, lat)
	if err != nil {
		return Entry[V]{}, false, err
	}
	return m.CellContaining(healpix.Cell{Depth: m.depth, Hash: h})
}

// OverlappedCells returns the entries whose cell contains c or is contained
// in c, in z-order.
func (m *Map[V]) OverlappedCells(c healpix.Cell) []Entry[V] {
	if !c.Valid() {
		return nil
	}
	z := c.ZUniq()
	lo := sort.Search(len(m.zuniqs), func(i int) bool { return m.zuniqs[i] >= z })
	hi := lo
	for lo > 0 && m.entries[lo-1].Cell.Overlaps(c) {
		lo--
	}
	for hi < len(m.entries) && m.entries[hi].Cell.Overlaps(c) {
		hi++
	}
	out := make([]Entry[V], hi-lo)
	copy(out, m.entries[lo:hi])
	return out
}
