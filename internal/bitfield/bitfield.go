package bitfield

import "math/bits"

// Bitfield is a packed bit array, one bit per piece, most significant bit
// first within each byte. It is the same layout peers exchange on the wire.
type Bitfield []byte

// New returns a zeroed Bitfield large enough to hold n pieces.
func New(n int) Bitfield {
	if n <= 0 {
		return Bitfield{}
	}
	return make(Bitfield, Len(n))
}

// Len returns the number of bytes needed to hold n pieces.
func Len(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + 7) / 8
}

func (bf Bitfield) HasPiece(index int) bool {
	byteIndex := index / 8
	if index < 0 || byteIndex >= len(bf) {
		return false
	}

	return bf[byteIndex]&mask(index) != 0
}

func (bf Bitfield) SetPiece(index int) {
	byteIndex := index / 8
	if index < 0 || byteIndex >= len(bf) {
		return
	}

	bf[byteIndex] |= mask(index)
}

func (bf Bitfield) ClearPiece(index int) {
	byteIndex := index / 8
	if index < 0 || byteIndex >= len(bf) {
		return
	}

	bf[byteIndex] &^= mask(index)
}

// Test reports whether bit index is set, treating anything at or past n as
// unset.
func (bf Bitfield) Test(n, index int) bool {
	if index < 0 || index >= n {
		return false
	}
	return bf.HasPiece(index)
}

// Put sets or clears bit index. It returns false without touching the
// array when index is outside [0, n).
func (bf Bitfield) Put(n, index int, on bool) bool {
	if index < 0 || index >= n || index/8 >= len(bf) {
		return false
	}
	if on {
		bf.SetPiece(index)
	} else {
		bf.ClearPiece(index)
	}
	return true
}

// Clone returns a deep copy.
func (bf Bitfield) Clone() Bitfield {
	if bf == nil {
		return nil
	}
	c := make(Bitfield, len(bf))
	copy(c, bf)
	return c
}

// Clear zeroes every byte.
func (bf Bitfield) Clear() {
	for i := range bf {
		bf[i] = 0
	}
}

// Fill sets the first n bits and leaves the padding bits of the last byte
// clear.
func (bf Bitfield) Fill(n int) {
	if len(bf) == 0 || n <= 0 {
		return
	}
	for i := range bf {
		bf[i] = 0xff
	}
	bf[len(bf)-1] &= LastByteMask(n)
}

// LastByteMask returns the mask of valid bits in the final byte of a
// Bitfield holding n pieces.
func LastByteMask(n int) byte {
	if n <= 0 {
		return 0
	}
	shift := (8 - n%8) % 8
	return byte(0xff << shift)
}

// Count returns the number of set bits among the first n.
func (bf Bitfield) Count(n int) int {
	l := Len(n)
	if l == 0 || l > len(bf) {
		return 0
	}

	count := 0
	for i := 0; i < l-1; i++ {
		count += bits.OnesCount8(bf[i])
	}
	count += bits.OnesCount8(bf[l-1] & LastByteMask(n))
	return count
}

// Any reports whether any of the first n bits is set.
func (bf Bitfield) Any(n int) bool {
	l := Len(n)
	if l == 0 || l > len(bf) {
		return false
	}
	for i := 0; i < l-1; i++ {
		if bf[i] != 0 {
			return true
		}
	}
	return bf[l-1]&LastByteMask(n) != 0
}

// All reports whether each of the first n bits is set. Padding bits are
// ignored.
func (bf Bitfield) All(n int) bool {
	l := Len(n)
	if l == 0 {
		return true
	}
	if l > len(bf) {
		return false
	}
	for i := 0; i < l-1; i++ {
		if bf[i] != 0xff {
			return false
		}
	}
	last := LastByteMask(n)
	return bf[l-1]&last == last
}

func mask(index int) byte {
	return 128 >> (index % 8)
}
