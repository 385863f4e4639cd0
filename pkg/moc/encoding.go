package moc

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/healpix-moc/pkg/healpix"
)

// Binary layout:
//
//	"HMOC" | version | codec | depth max | body (maybe compressed) | xxhash64(body)
//
// The uncompressed body is a uvarint number of depth groups, then for each
// group, by increasing depth: uvarint depth, uvarint cell count and the
// uvarint deltas of the sorted hashes, the first against 0. Later deltas are
// at least 1. The checksum is little-endian.
const (
	magic         = "HMOC"
	formatVersion = 1
	headerLen     = len(magic) + 3
	trailerLen    = 8
)

// MarshalBinary encodes the MOC without compression.
func (m *MOC) MarshalBinary() ([]byte, error) {
	return m.Encode(CodecNone)
}

// Encode encodes the MOC with the body compressed by codec.
func (m *MOC) Encode(codec Codec) ([]byte, error) {
	if !codec.valid() {
		return nil, fmt.Errorf("unknown moc codec %d", uint8(codec))
	}
	body := m.body()
	payload, err := codec.compress(body)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, headerLen+len(payload)+trailerLen)
	out = append(out, magic...)
	out = append(out, formatVersion, byte(codec), m.depth)
	out = append(out, payload...)
	return binary.LittleEndian.AppendUint64(out, xxhash.Sum64(body)), nil
}

func (m *MOC) body() []byte {
	var groups [healpix.MaxDepth + 1][]uint64
	for _, c := range m.cells {
		groups[c.Depth] = append(groups[c.Depth], c.Hash)
	}
	n := 0
	for _, g := range groups {
		if len(g) > 0 {
			n++
		}
	}
	out := binary.AppendUvarint(nil, uint64(n))
	for d, g := range groups {
		if len(g) == 0 {
			continue
		}
		// cells of one depth in z-order are in hash order
		out = binary.AppendUvarint(out, uint64(d))
		out = binary.AppendUvarint(out, uint64(len(g)))
		var prev uint64
		for _, h := range g {
			out = binary.AppendUvarint(out, h-prev)
			prev = h
		}
	}
	return out
}

// Decode parses a binary MOC, compressed or not.
func Decode(data []byte) (*MOC, error) {
	if len(data) < headerLen+trailerLen {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrMalformedEncoding, len(data))
	}
	if string(data[:len(magic)]) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrMalformedEncoding, data[:len(magic)])
	}
	if v := data[len(magic)]; v != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedEncoding, v)
	}
	codec := Codec(data[len(magic)+1])
	if !codec.valid() {
		return nil, fmt.Errorf("%w: unknown codec %d", ErrMalformedEncoding, uint8(codec))
	}
	depth := data[len(magic)+2]
	if depth > healpix.MaxDepth {
		return nil, fmt.Errorf("%w: depth max %d > %d", ErrMalformedEncoding, depth, healpix.MaxDepth)
	}

	payload := data[headerLen : len(data)-trailerLen]
	body, err := codec.decompress(payload)
	if err != nil {
		return nil, err
	}
	if sum := binary.LittleEndian.Uint64(data[len(data)-trailerLen:]); sum != xxhash.Sum64(body) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrMalformedEncoding)
	}
	cells, err := decodeBody(body, depth)
	if err != nil {
		return nil, err
	}
	m := &MOC{depth: depth, cells: cells}
	if !slices.Equal(normalize(slices.Clone(cells)), cells) {
		return nil, fmt.Errorf("%w: cells are not normalized", ErrMalformedEncoding)
	}
	return m, nil
}

type bodyReader struct {
	buf []byte
	off int
}

func (r *bodyReader) uvarint(what string) (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.off:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: truncated or overflowing %s at byte %d", ErrMalformedEncoding, what, r.off)
	}
	r.off += n
	return v, nil
}

func (r *bodyReader) remaining() int { return len(r.buf) - r.off }

func decodeBody(body []byte, depthMax uint8) ([]healpix.Cell, error) {
	r := &bodyReader{buf: body}
	groups, err := r.uvarint("group count")
	if err != nil {
		return nil, err
	}
	if groups > uint64(depthMax)+1 {
		return nil, fmt.Errorf("%w: %d depth groups for depth max %d", ErrMalformedEncoding, groups, depthMax)
	}
	var cells []healpix.Cell
	prevDepth := -1
	for g := uint64(0); g < groups; g++ {
		d, err := r.uvarint("depth")
		if err != nil {
			return nil, err
		}
		if d > uint64(depthMax) {
			return nil, fmt.Errorf("%w: depth %d > depth max %d", ErrMalformedEncoding, d, depthMax)
		}
		if int(d) <= prevDepth {
			return nil, fmt.Errorf("%w: depth %d after depth %d", ErrMalformedEncoding, d, prevDepth)
		}
		prevDepth = int(d)

		count, err := r.uvarint("cell count")
		if err != nil {
			return nil, err
		}
		if count == 0 || count > uint64(r.remaining()) {
			return nil, fmt.Errorf("%w: %d cells at depth %d", ErrMalformedEncoding, count, d)
		}
		nHash := healpix.MustGet(uint8(d)).NHash()
		var h uint64
		for k := uint64(0); k < count; k++ {
			delta, err := r.uvarint("hash delta")
			if err != nil {
				return nil, err
			}
			if k > 0 && delta == 0 {
				return nil, fmt.Errorf("%w: repeated hash %d at depth %d", ErrMalformedEncoding, h, d)
			}
			if delta >= nHash-h {
				return nil, fmt.Errorf("%w: hash out of range at depth %d", ErrMalformedEncoding, d)
			}
			h += delta
			cells = append(cells, healpix.Cell{Depth: uint8(d), Hash: h})
		}
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedEncoding, r.remaining())
	}
	slices.SortFunc(cells, healpix.CompareZ)
	return cells, nil
}

// UnmarshalBinary decodes data into m.
func (m *MOC) UnmarshalBinary(data []byte) error {
	d, err := Decode(data)
	if err != nil {
		return err
	}
	*m = *d
	return nil
}

// MarshalText returns the base64 form of the uncompressed binary encoding.
func (m *MOC) MarshalText() ([]byte, error) {
	b, err := m.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, base64.StdEncoding.EncodedLen(len(b)))
	base64.StdEncoding.Encode(out, b)
	return out, nil
}

// UnmarshalText decodes the base64 form of a binary encoding, compressed or
// not.
func (m *MOC) UnmarshalText(text []byte) error {
	b := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(b, text)
	if err != nil {
		return fmt.Errorf("%w: base64: %v", ErrMalformedEncoding, err)
	}
	return m.UnmarshalBinary(b[:n])
}
