package blockman

import (
	"math/bits"

	"github.com/danferreira/blocktrack/internal/bitfield"
)

// candidates narrows v to the filtered blocks when filtering is on.
func (m *Manager) candidates(v bitfield.View) bitfield.View {
	if m.filterEnabled {
		return bitfield.And(v, m.filterBitfield)
	}
	return v
}

func (m *Manager) missing() bitfield.View {
	return m.candidates(bitfield.Not(m.bitfield))
}

func (m *Manager) missingUnused() bitfield.View {
	return m.candidates(bitfield.And(bitfield.Not(m.bitfield), bitfield.Not(m.useBitfield)))
}

func (m *Manager) missingFrom(peer bitfield.Bitfield) bitfield.View {
	return m.candidates(bitfield.And(bitfield.Not(m.bitfield), peer))
}

func (m *Manager) missingUnusedFrom(peer bitfield.Bitfield) bitfield.View {
	return m.candidates(bitfield.And3(bitfield.Not(m.bitfield), bitfield.Not(m.useBitfield), peer))
}

// randomIndex starts at a random byte and walks the bytes circularly,
// returning the first set bit of the first byte holding a candidate. Only
// the starting byte is random, so the first bit of each byte is favoured.
func (m *Manager) randomIndex(v bitfield.View) (int, bool) {
	n := v.Len()
	if n == 0 {
		return 0, false
	}

	b := m.randomizer.RandomNumber(n)
	if b < 0 || b >= n {
		b = 0
	}

	last := bitfield.LastByteMask(m.blocks)
	for i := 0; i < n; i++ {
		mask := byte(0xff)
		if b == n-1 {
			mask = last
		}
		if c := v.At(b) & mask; c != 0 {
			return b*8 + leadingBit(c), true
		}
		b++
		if b == n {
			b = 0
		}
	}
	return 0, false
}

func (m *Manager) firstIndex(v bitfield.View) (int, bool) {
	for i := 0; i < v.Len(); i++ {
		b := v.At(i)
		if b == 0 {
			continue
		}
		index := i*8 + leadingBit(b)
		if index >= m.blocks {
			return 0, false
		}
		return index, true
	}
	return 0, false
}

func leadingBit(b byte) int {
	return bits.LeadingZeros8(b)
}

// MissingIndex picks a random block that is not complete.
func (m *Manager) MissingIndex() (int, bool) {
	return m.randomIndex(m.missing())
}

// MissingIndexFrom picks a random block that is not complete and that peer
// has. A peer bitfield of the wrong length yields no selection.
func (m *Manager) MissingIndexFrom(peer bitfield.Bitfield) (int, bool) {
	if len(peer) != len(m.bitfield) {
		return 0, false
	}
	return m.randomIndex(m.missingFrom(peer))
}

// MissingUnusedIndex picks a random block that is neither complete nor
// reserved.
func (m *Manager) MissingUnusedIndex() (int, bool) {
	return m.randomIndex(m.missingUnused())
}

// MissingUnusedIndexFrom picks a random block that is neither complete nor
// reserved and that peer has.
func (m *Manager) MissingUnusedIndexFrom(peer bitfield.Bitfield) (int, bool) {
	if len(peer) != len(m.bitfield) {
		return 0, false
	}
	return m.randomIndex(m.missingUnusedFrom(peer))
}

// FirstMissingIndex returns the lowest block that is not complete.
func (m *Manager) FirstMissingIndex() (int, bool) {
	return m.firstIndex(m.missing())
}

// FirstMissingUnusedIndex returns the lowest block that is neither complete
// nor reserved.
func (m *Manager) FirstMissingUnusedIndex() (int, bool) {
	return m.firstIndex(m.missingUnused())
}

// HasMissingPiece reports whether peer has any block we still lack.
func (m *Manager) HasMissingPiece(peer bitfield.Bitfield) bool {
	if len(peer) != len(m.bitfield) {
		return false
	}
	_, ok := m.firstIndex(m.missingFrom(peer))
	return ok
}

// AllMissingIndexes writes the mask of incomplete blocks into out and
// reports whether it has any bit set. out must be BitfieldLength bytes.
func (m *Manager) AllMissingIndexes(out bitfield.Bitfield) bool {
	if len(out) != len(m.bitfield) {
		return false
	}
	return bitfield.CopyTo(out, m.missing(), m.blocks)
}

// AllMissingIndexesFrom is AllMissingIndexes restricted to blocks peer has.
func (m *Manager) AllMissingIndexesFrom(out, peer bitfield.Bitfield) bool {
	if len(out) != len(m.bitfield) || len(peer) != len(m.bitfield) {
		return false
	}
	return bitfield.CopyTo(out, m.missingFrom(peer), m.blocks)
}

// AllMissingUnusedIndexes writes the mask of blocks that peer has and that
// are neither complete nor reserved.
func (m *Manager) AllMissingUnusedIndexes(out, peer bitfield.Bitfield) bool {
	if len(out) != len(m.bitfield) || len(peer) != len(m.bitfield) {
		return false
	}
	return bitfield.CopyTo(out, m.missingUnusedFrom(peer), m.blocks)
}
