package blockman

import (
	"math/rand/v2"
	"testing"

	"github.com/danferreira/blocktrack/internal/bitfield"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixed always starts the random scan at the same byte.
func fixed(b int) Randomizer {
	return RandomizerFunc(func(bound int) int {
		if b >= bound {
			return bound - 1
		}
		return b
	})
}

func requireFreshCache(t *testing.T, m *Manager) {
	t.Helper()
	require.Equal(t, m.CountMissingBlockNow(), m.CountMissingBlock())
	require.Equal(t, m.CountFilteredBlockNow(), m.CountFilteredBlock())
	require.Equal(t, m.FilteredTotalLengthNow(), m.FilteredTotalLength())
	require.Equal(t, m.CompletedLengthNow(), m.CompletedLength())
	require.Equal(t, m.FilteredCompletedLengthNow(), m.FilteredCompletedLength())
}

func TestNewGeometry(t *testing.T) {
	tests := map[string]struct {
		blockLength int64
		totalLength int64
		blocks      int
		bytes       int
		last        int64
	}{
		"short last block":   {10, 25, 3, 1, 5},
		"exact multiple":     {16, 32, 2, 1, 16},
		"two bytes":          {1, 9, 9, 2, 1},
		"single short block": {100, 7, 1, 1, 7},
		"zero block length":  {0, 10, 0, 0, 0},
		"zero total length":  {10, 0, 0, 0, 0},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			m := New(tt.blockLength, tt.totalLength, nil)

			assert.Equal(t, tt.blocks, m.CountBlock())
			assert.Equal(t, tt.blocks-1, m.MaxIndex())
			assert.Equal(t, tt.bytes, m.BitfieldLength())
			assert.Equal(t, tt.last, m.LastBlockLength())
			if tt.blocks > 0 {
				assert.Equal(t, tt.last, m.BlockLengthAt(tt.blocks-1))
				assert.Equal(t, tt.totalLength-tt.blockLength*int64(tt.blocks-1), m.BlockLengthAt(m.MaxIndex()))
			}
			assert.Equal(t, int64(0), m.BlockLengthAt(tt.blocks))
			assert.Equal(t, int64(0), m.BlockLengthAt(-1))
			requireFreshCache(t, m)
		})
	}
}

func TestEndToEnd(t *testing.T) {
	m := New(10, 25, nil)

	require.Equal(t, 3, m.CountBlock())
	require.Equal(t, 1, m.BitfieldLength())
	require.Equal(t, int64(5), m.BlockLengthAt(2))
	assert.Equal(t, 3, m.CountMissingBlock())

	assert.True(t, m.SetBit(0))
	assert.True(t, m.SetBit(1))
	assert.Equal(t, int64(20), m.CompletedLengthNow())
	assert.Equal(t, int64(20), m.CompletedLength())
	assert.False(t, m.IsAllBitSet())

	assert.True(t, m.SetBit(2))
	assert.Equal(t, int64(25), m.CompletedLengthNow())
	assert.True(t, m.IsAllBitSet())
	assert.Equal(t, 0, m.CountMissingBlock())
	requireFreshCache(t, m)
}

func TestDegenerateManager(t *testing.T) {
	m := New(0, 0, fixed(0))
	out := bitfield.Bitfield{}

	assert.Equal(t, 0, m.CountBlock())
	assert.False(t, m.SetBit(0))
	assert.False(t, m.IsBitSet(0))
	assert.False(t, m.SetUseBit(0))

	_, ok := m.MissingIndex()
	assert.False(t, ok)
	_, ok = m.FirstMissingIndex()
	assert.False(t, ok)
	_, ok = m.SparseMissingUnusedIndex()
	assert.False(t, ok)
	_, ok = m.MissingIndexFrom(bitfield.Bitfield{})
	assert.False(t, ok)
	assert.False(t, m.AllMissingIndexes(out))

	assert.Equal(t, int64(0), m.MissingUnusedLength(0))
	assert.False(t, m.IsBitSetOffsetRange(0, 1))
	m.AddFilter(0, 10)
	m.EnableFilter()
	assert.Equal(t, 0, m.CountMissingBlock())
	assert.Equal(t, int64(0), m.CompletedLength())
	assert.True(t, m.IsAllBitSet())
	assert.True(t, m.SetBitfield(nil))
	requireFreshCache(t, m)
}

func TestSetBitOutOfRange(t *testing.T) {
	m := New(1, 10, nil)

	assert.False(t, m.SetBit(10))
	assert.False(t, m.SetBit(-1))
	assert.False(t, m.SetUseBit(15))
	assert.False(t, m.UnsetBit(10))
	assert.False(t, m.IsBitSet(10))

	// bits 10..15 are padding of the second byte and must stay clear
	assert.Equal(t, bitfield.Bitfield{0x00, 0x00}, m.Bitfield())
}

func TestSetBitIdempotent(t *testing.T) {
	m := New(10, 25, nil)

	m.SetBit(1)
	completed, missing := m.CompletedLength(), m.CountMissingBlock()

	m.SetBit(1)
	assert.Equal(t, completed, m.CompletedLength())
	assert.Equal(t, missing, m.CountMissingBlock())

	m.UnsetBit(0)
	assert.Equal(t, completed, m.CompletedLength())
	assert.Equal(t, missing, m.CountMissingBlock())
	requireFreshCache(t, m)
}

func TestUseBits(t *testing.T) {
	m := New(1, 10, nil)

	assert.True(t, m.SetUseBit(3))
	assert.True(t, m.IsUseBitSet(3))
	assert.False(t, m.IsBitSet(3))
	assert.Equal(t, 10, m.CountMissingBlock())

	assert.True(t, m.UnsetUseBit(3))
	assert.False(t, m.IsUseBitSet(3))

	m.SetAllUseBit()
	_, ok := m.FirstMissingUnusedIndex()
	assert.False(t, ok)

	m.ClearAllUseBit()
	index, ok := m.FirstMissingUnusedIndex()
	assert.True(t, ok)
	assert.Equal(t, 0, index)
}

func TestSetAllAndClearAll(t *testing.T) {
	m := New(3, 31, nil)

	m.SetAllBit()
	assert.True(t, m.IsAllBitSet())
	assert.Equal(t, int64(31), m.CompletedLength())
	assert.Equal(t, bitfield.Bitfield{0xff, 0xe0}, m.Bitfield())

	m.ClearAllBit()
	assert.Equal(t, 11, m.CountMissingBlock())
	assert.Equal(t, int64(0), m.CompletedLength())
}

func TestIsAllBitSetIgnoresPadding(t *testing.T) {
	m := New(1, 10, nil)

	require.True(t, m.SetBitfield([]byte{0xff, 0xff}))
	assert.True(t, m.IsAllBitSet())
	assert.Equal(t, 0, m.CountMissingBlock())
	assert.Equal(t, int64(10), m.CompletedLength())
}

func TestSetBitfield(t *testing.T) {
	m := New(1, 12, nil)
	m.SetBit(0)
	m.SetUseBit(5)

	assert.False(t, m.SetBitfield([]byte{0xff}))
	assert.True(t, m.IsBitSet(0))
	assert.True(t, m.IsUseBitSet(5))

	snapshot := m.Bitfield()
	assert.True(t, m.SetBitfield(snapshot))
	assert.Equal(t, snapshot, m.Bitfield())
	assert.False(t, m.IsUseBitSet(5))

	assert.True(t, m.SetBitfield([]byte{0b10100000, 0b00010000}))
	assert.True(t, m.IsBitSet(0))
	assert.True(t, m.IsBitSet(2))
	assert.True(t, m.IsBitSet(11))
	assert.Equal(t, int64(3), m.CompletedLength())
	requireFreshCache(t, m)
}

func TestBitfieldReturnsCopy(t *testing.T) {
	m := New(1, 8, nil)

	bf := m.Bitfield()
	bf.SetPiece(0)

	assert.False(t, m.IsBitSet(0))
}

func TestClone(t *testing.T) {
	r := fixed(0)
	m := New(10, 95, r)
	m.SetBit(1)
	m.SetUseBit(2)
	m.AddFilter(0, 40)
	m.EnableFilter()

	c := m.Clone()
	assert.Equal(t, m.Bitfield(), c.Bitfield())
	assert.True(t, c.IsUseBitSet(2))
	assert.True(t, c.IsFilterEnabled())
	assert.Equal(t, m.FilteredTotalLength(), c.FilteredTotalLength())
	assert.Equal(t, m.CountMissingBlock(), c.CountMissingBlock())
	assert.NotNil(t, c.Randomizer())

	c.SetBit(3)
	c.UnsetUseBit(2)
	c.AddFilter(50, 10)

	assert.False(t, m.IsBitSet(3))
	assert.True(t, m.IsUseBitSet(2))
	assert.Equal(t, int64(40), m.FilteredTotalLength())
	assert.Equal(t, int64(50), c.FilteredTotalLength())
	requireFreshCache(t, m)
	requireFreshCache(t, c)
}

func TestCopyFrom(t *testing.T) {
	src := New(4, 64, nil)
	src.SetBitRange(0, 3)

	dst := New(10, 25, nil)
	dst.AddFilter(0, 10)
	dst.EnableFilter()

	dst.CopyFrom(src)
	assert.Equal(t, 16, dst.CountBlock())
	assert.Equal(t, 2, dst.BitfieldLength())
	assert.False(t, dst.IsFilterEnabled())
	assert.Equal(t, int64(16), dst.CompletedLength())
	assert.Equal(t, int64(0), dst.FilteredTotalLength())

	dst.CopyFrom(dst)
	assert.Equal(t, int64(16), dst.CompletedLength())
	requireFreshCache(t, dst)
}

func TestAggregatesStayFresh(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	m := New(7, 1000, RandomizerFunc(rng.IntN))

	for i := 0; i < 500; i++ {
		index := rng.IntN(m.CountBlock() + 2)
		switch rng.IntN(8) {
		case 0:
			m.SetBit(index)
		case 1:
			m.UnsetBit(index)
		case 2:
			m.SetBitRange(index, index+rng.IntN(10))
		case 3:
			m.UnsetBitRange(index, index+rng.IntN(10))
		case 4:
			m.AddFilter(int64(rng.IntN(1100)), int64(rng.IntN(50)))
		case 5:
			if rng.IntN(2) == 0 {
				m.EnableFilter()
			} else {
				m.DisableFilter()
			}
		case 6:
			m.ClearFilter()
		case 7:
			m.SetUseBit(index)
		}
		requireFreshCache(t, m)

		if !m.IsFilterEnabled() {
			require.Equal(t, m.CountBlock(), m.CountMissingBlockNow()+m.Bitfield().Count(m.CountBlock()))
		}
	}
}
