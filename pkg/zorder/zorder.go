// Package zorder interleaves pairs of cell coordinates into a single
// Morton (z-order) value and back.
//
// Bit 2k of an encoded value is bit k of i, bit 2k+1 is bit k of j.
package zorder

const (
	m1  = 0x5555555555555555
	m2  = 0x3333333333333333
	m4  = 0x0f0f0f0f0f0f0f0f
	m8  = 0x00ff00ff00ff00ff
	m16 = 0x0000ffff0000ffff
	m32 = 0x00000000ffffffff
)

// EncodeI spreads the 32 bits of i on the even bits of the result.
func EncodeI(i uint32) uint64 {
	x := uint64(i)
	x = (x | (x << 16)) & m16
	x = (x | (x << 8)) & m8
	x = (x | (x << 4)) & m4
	x = (x | (x << 2)) & m2
	x = (x | (x << 1)) & m1
	return x
}

// DecodeI squeezes the even bits of z.
func DecodeI(z uint64) uint32 {
	x := z & m1
	x = (x | (x >> 1)) & m2
	x = (x | (x >> 2)) & m4
	x = (x | (x >> 4)) & m8
	x = (x | (x >> 8)) & m16
	x = (x | (x >> 16)) & m32
	return uint32(x)
}

// Encode interleaves i and j into a single z-order value.
func Encode(i, j uint32) uint64 {
	return EncodeI(i) | EncodeI(j)<<1
}

// Decode splits z back into its i and j coordinates.
func Decode(z uint64) (i, j uint32) {
	return DecodeI(z), DecodeI(z >> 1)
}

// IJ is the integer face coordinate pair of a cell.
type IJ struct {
	I uint32
	J uint32
}

// Z returns the z-order value of p.
func (p IJ) Z() uint64 { return Encode(p.I, p.J) }

// FromZ returns the coordinate pair encoded in z.
func FromZ(z uint64) IJ {
	i, j := Decode(z)
	return IJ{I: i, J: j}
}
