package moc

import (
	"github.com/mohammed-shakir/healpix-moc/pkg/healpix"
)

// span is a half-open range of depth 29 cells.
type span struct{ start, end uint64 }

var sphere = span{0, uint64(healpix.NBaseCells) << (2 * healpix.MaxDepth)}

// spans returns the sorted, disjoint and non-adjacent ranges covered.
func (m *MOC) spans() []span {
	out := make([]span, 0, len(m.cells))
	for _, c := range m.cells {
		s, e := c.Range()
		if n := len(out); n > 0 && out[n-1].end == s {
			out[n-1].end = e
			continue
		}
		out = append(out, span{s, e})
	}
	return out
}

// fromSpans converts merged ranges back into cells. Maximal aligned cells
// of merged ranges never leave 4 siblings, so the result is normalized.
func fromSpans(depth uint8, ss []span) *MOC {
	var cells []healpix.Cell
	for _, s := range ss {
		cells = appendRange(cells, s.start, s.end)
	}
	return &MOC{depth: depth, cells: cells}
}

// push appends s to out, merging it with the last range when they touch.
func push(out []span, s span) []span {
	if s.start >= s.end {
		return out
	}
	if n := len(out); n > 0 && out[n-1].end >= s.start {
		out[n-1].end = max(out[n-1].end, s.end)
		return out
	}
	return append(out, s)
}

func unionSpans(a, b []span) []span {
	out := make([]span, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		if j == len(b) || (i < len(a) && a[i].start <= b[j].start) {
			out = push(out, a[i])
			i++
		} else {
			out = push(out, b[j])
			j++
		}
	}
	return out
}

func intersectSpans(a, b []span) []span {
	var out []span
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		s := span{max(a[i].start, b[j].start), min(a[i].end, b[j].end)}
		out = push(out, s)
		if a[i].end < b[j].end {
			i++
		} else {
			j++
		}
	}
	return out
}

func complementSpans(a []span) []span {
	out := make([]span, 0, len(a)+1)
	var prev uint64
	for _, s := range a {
		out = push(out, span{prev, s.start})
		prev = s.end
	}
	return push(out, span{prev, sphere.end})
}

func resultDepth(a, b *MOC) uint8 {
	return max(a.depth, b.depth)
}

// Union returns the cells covered by m or o, at the deeper of both depths.
func (m *MOC) Union(o *MOC) *MOC {
	return fromSpans(resultDepth(m, o), unionSpans(m.spans(), o.spans()))
}

// Intersection returns the cells covered by both m and o.
func (m *MOC) Intersection(o *MOC) *MOC {
	return fromSpans(resultDepth(m, o), intersectSpans(m.spans(), o.spans()))
}

// Difference returns the cells covered by m and not by o.
func (m *MOC) Difference(o *MOC) *MOC {
	return fromSpans(resultDepth(m, o), intersectSpans(m.spans(), complementSpans(o.spans())))
}

// SymmetricDifference returns the cells covered by exactly one of m and o.
func (m *MOC) SymmetricDifference(o *MOC) *MOC {
	a, b := m.spans(), o.spans()
	either := unionSpans(a, b)
	both := intersectSpans(a, b)
	return fromSpans(resultDepth(m, o), intersectSpans(either, complementSpans(both)))
}

// Complement returns the rest of the sphere.
func (m *MOC) Complement() *MOC {
	return fromSpans(m.depth, complementSpans(m.spans()))
}

// Degrade returns the MOC at a lower maximum depth, replacing deeper cells
// by their ancestor at depth. The result covers at least m.
func (m *MOC) Degrade(depth uint8) *MOC {
	if depth >= m.depth {
		return m
	}
	cells := make([]healpix.Cell, len(m.cells))
	for k, c := range m.cells {
		if c.Depth > depth {
			c = healpix.Cell{Depth: depth, Hash: c.Hash >> (2 * uint(c.Depth-depth))}
		}
		cells[k] = c
	}
	return &MOC{depth: depth, cells: normalize(cells)}
}
