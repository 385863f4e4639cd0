package moc

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/healpix-moc/pkg/healpix"
)

// FormatASCII returns the IVOA ASCII serialization, e.g. "1/0-3 5 2/": for
// each depth holding cells, "depth/" followed by its hashes, consecutive
// hashes written as inclusive ranges. A trailing "depth/" records the depth
// max when it holds no cell.
func (m *MOC) FormatASCII() string {
	return m.String()
}

func (m *MOC) writeASCII(w io.StringWriter) {
	var groups [healpix.MaxDepth + 1][]uint64
	for _, c := range m.cells {
		groups[c.Depth] = append(groups[c.Depth], c.Hash)
	}
	first := true
	sep := func() {
		if !first {
			w.WriteString(" ")
		}
		first = false
	}
	for d, g := range groups {
		if len(g) == 0 {
			continue
		}
		sep()
		w.WriteString(strconv.Itoa(d) + "/")
		for k := 0; k < len(g); {
			end := k
			for end+1 < len(g) && g[end+1] == g[end]+1 {
				end++
			}
			if k > 0 {
				w.WriteString(" ")
			}
			w.WriteString(strconv.FormatUint(g[k], 10))
			if end > k {
				w.WriteString("-" + strconv.FormatUint(g[end], 10))
			}
			k = end + 1
		}
	}
	if len(groups[m.depth]) == 0 {
		sep()
		w.WriteString(strconv.Itoa(int(m.depth)) + "/")
	}
}

// ParseASCII parses the IVOA ASCII serialization. Tokens are separated by
// spaces, commas or newlines. The MOC depth is the deepest depth named.
func ParseASCII(s string) (*MOC, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty ascii moc", ErrMalformedEncoding)
	}

	type item struct {
		depth      uint8
		start, end uint64
	}
	var items []item
	depth := -1
	depthMax := 0
	for _, f := range fields {
		if i := strings.IndexByte(f, '/'); i >= 0 {
			d, err := strconv.ParseUint(f[:i], 10, 8)
			if err != nil || d > healpix.MaxDepth {
				return nil, fmt.Errorf("%w: bad depth in %q", ErrMalformedEncoding, f)
			}
			depth = int(d)
			depthMax = max(depthMax, depth)
			f = f[i+1:]
			if f == "" {
				continue
			}
		}
		if depth < 0 {
			return nil, fmt.Errorf("%w: %q before any depth", ErrMalformedEncoding, f)
		}
		lo, hi, ok := strings.Cut(f, "-")
		start, err := strconv.ParseUint(lo, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad hash %q", ErrMalformedEncoding, f)
		}
		end := start
		if ok {
			if end, err = strconv.ParseUint(hi, 10, 64); err != nil || end < start {
				return nil, fmt.Errorf("%w: bad range %q", ErrMalformedEncoding, f)
			}
		}
		if end >= healpix.MustGet(uint8(depth)).NHash() {
			return nil, fmt.Errorf("%w: %q out of range at depth %d", ErrMalformedEncoding, f, depth)
		}
		items = append(items, item{uint8(depth), start, end + 1})
	}

	b, err := NewBuilder(uint8(depthMax))
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if err := b.AddRange(it.depth, it.start, it.end); err != nil {
			return nil, err
		}
	}
	return b.Build()
}
