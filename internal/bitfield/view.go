package bitfield

// View is a lazily evaluated byte sequence, combining one or more
// Bitfields without materializing intermediate arrays.
type View interface {
	Len() int
	At(i int) byte
}

func (bf Bitfield) Len() int      { return len(bf) }
func (bf Bitfield) At(i int) byte { return bf[i] }

type not struct{ v View }

func (n not) Len() int      { return n.v.Len() }
func (n not) At(i int) byte { return ^n.v.At(i) }

// Not inverts every byte of v.
func Not(v View) View { return not{v} }

type and struct{ l, r View }

func (a and) Len() int      { return a.l.Len() }
func (a and) At(i int) byte { return a.l.At(i) & a.r.At(i) }

// And intersects l and r. Both must have the same length.
func And(l, r View) View { return and{l, r} }

// And3 intersects three views of the same length.
func And3(a, b, c View) View { return And(And(a, b), c) }

// CopyTo writes the first n bits of v into dst, masking the padding bits of
// the last byte. It reports whether any bit was written. dst and v must be
// Len(n) bytes long.
func CopyTo(dst Bitfield, v View, n int) bool {
	l := Len(n)
	if l == 0 || len(dst) != l || v.Len() != l {
		return false
	}
	var acc byte
	for i := 0; i < l-1; i++ {
		dst[i] = v.At(i)
		acc |= dst[i]
	}
	dst[l-1] = v.At(l-1) & LastByteMask(n)
	acc |= dst[l-1]
	return acc != 0
}

// Materialize returns a new Bitfield holding the first n bits of v.
func Materialize(v View, n int) Bitfield {
	dst := New(n)
	CopyTo(dst, v, n)
	return dst
}
