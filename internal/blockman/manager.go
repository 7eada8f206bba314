// Package blockman tracks which blocks of a transfer are complete, which
// are reserved by in-flight requests and which are wanted at all, and
// picks the next block to request from a peer.
//
// A Manager is not safe for concurrent use. Callers sharing one between
// goroutines must serialize access themselves (see internal/picker).
package blockman

import "github.com/danferreira/blocktrack/internal/bitfield"

type Manager struct {
	blockLength int64
	totalLength int64
	blocks      int

	bitfield       bitfield.Bitfield
	useBitfield    bitfield.Bitfield
	filterBitfield bitfield.Bitfield
	filterEnabled  bool

	randomizer Randomizer

	cachedNumMissingBlock         int
	cachedNumFilteredBlock        int
	cachedFilteredTotalLength     int64
	cachedCompletedLength         int64
	cachedFilteredCompletedLength int64
}

// New creates a Manager for a resource of totalLength bytes split into
// blocks of blockLength bytes. A non-positive length on either side gives
// an empty Manager whose queries all report nothing. A nil randomizer
// falls back to NewRandomizer().
func New(blockLength, totalLength int64, r Randomizer) *Manager {
	if r == nil {
		r = NewRandomizer()
	}

	m := &Manager{
		blockLength: blockLength,
		totalLength: totalLength,
		randomizer:  r,
	}

	if blockLength > 0 && totalLength > 0 {
		m.blocks = int((totalLength + blockLength - 1) / blockLength)
		m.bitfield = bitfield.New(m.blocks)
		m.useBitfield = bitfield.New(m.blocks)
		m.updateCache()
	}

	return m
}

// Clone returns a deep copy of m. The randomizer is shared.
func (m *Manager) Clone() *Manager {
	c := &Manager{}
	c.CopyFrom(m)
	return c
}

// CopyFrom replaces the state of m with a deep copy of src. All buffers are
// built before any field of m is touched.
func (m *Manager) CopyFrom(src *Manager) {
	if m == src {
		return
	}

	bf := src.bitfield.Clone()
	use := src.useBitfield.Clone()
	filter := src.filterBitfield.Clone()

	m.blockLength = src.blockLength
	m.totalLength = src.totalLength
	m.blocks = src.blocks
	m.bitfield = bf
	m.useBitfield = use
	m.filterBitfield = filter
	m.filterEnabled = src.filterEnabled
	m.randomizer = src.randomizer

	m.updateCache()
}

func (m *Manager) BlockLength() int64 { return m.blockLength }

func (m *Manager) TotalLength() int64 { return m.totalLength }

// LastBlockLength returns the size of the final block, which may be
// shorter than BlockLength.
func (m *Manager) LastBlockLength() int64 {
	if m.blocks == 0 {
		return 0
	}
	return m.totalLength - m.blockLength*int64(m.blocks-1)
}

// BlockLengthAt returns the size of block index, or 0 if index is out of
// range.
func (m *Manager) BlockLengthAt(index int) int64 {
	switch {
	case index < 0 || index >= m.blocks:
		return 0
	case index == m.blocks-1:
		return m.LastBlockLength()
	default:
		return m.blockLength
	}
}

func (m *Manager) CountBlock() int { return m.blocks }

// MaxIndex returns the highest valid block index, or -1 when empty.
func (m *Manager) MaxIndex() int { return m.blocks - 1 }

// BitfieldLength returns the size in bytes of every mask, and the length
// peers' bitfields must have.
func (m *Manager) BitfieldLength() int { return len(m.bitfield) }

func (m *Manager) IsBitSet(index int) bool {
	return m.bitfield.Test(m.blocks, index)
}

func (m *Manager) IsUseBitSet(index int) bool {
	return m.useBitfield.Test(m.blocks, index)
}

func (m *Manager) SetBit(index int) bool {
	ok := m.bitfield.Put(m.blocks, index, true)
	m.updateCache()
	return ok
}

func (m *Manager) UnsetBit(index int) bool {
	ok := m.bitfield.Put(m.blocks, index, false)
	m.updateCache()
	return ok
}

func (m *Manager) SetUseBit(index int) bool {
	return m.useBitfield.Put(m.blocks, index, true)
}

func (m *Manager) UnsetUseBit(index int) bool {
	return m.useBitfield.Put(m.blocks, index, false)
}

func (m *Manager) SetAllBit() {
	m.bitfield.Fill(m.blocks)
	m.updateCache()
}

func (m *Manager) ClearAllBit() {
	m.bitfield.Clear()
	m.updateCache()
}

func (m *Manager) SetAllUseBit() {
	m.useBitfield.Fill(m.blocks)
}

func (m *Manager) ClearAllUseBit() {
	m.useBitfield.Clear()
}

// IsAllBitSet reports whether every block is complete. An empty Manager is
// trivially complete.
func (m *Manager) IsAllBitSet() bool {
	return m.bitfield.All(m.blocks)
}

// IsFilteredAllBitSet reports whether every filtered block is complete,
// falling back to IsAllBitSet when filtering is off.
func (m *Manager) IsFilteredAllBitSet() bool {
	if !m.filterEnabled {
		return m.IsAllBitSet()
	}
	for i := range m.bitfield {
		if m.bitfield[i]&m.filterBitfield[i] != m.filterBitfield[i] {
			return false
		}
	}
	return true
}

// Bitfield returns a copy of the completion mask.
func (m *Manager) Bitfield() bitfield.Bitfield {
	return m.bitfield.Clone()
}

// SetBitfield overwrites the completion mask with bf and drops every
// reservation. It does nothing and returns false when bf has the wrong
// length.
func (m *Manager) SetBitfield(bf []byte) bool {
	if len(bf) != len(m.bitfield) {
		return false
	}
	copy(m.bitfield, bf)
	m.useBitfield.Clear()
	m.updateCache()
	return true
}

// SetRandomizer replaces the randomizer. nil restores NewRandomizer().
func (m *Manager) SetRandomizer(r Randomizer) {
	if r == nil {
		r = NewRandomizer()
	}
	m.randomizer = r
}

func (m *Manager) Randomizer() Randomizer { return m.randomizer }
