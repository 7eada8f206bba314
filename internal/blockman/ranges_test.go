package blockman

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitRange(t *testing.T) {
	m := New(1, 20, nil)

	m.SetBitRange(3, 12)
	assert.True(t, m.IsBitRangeSet(3, 12))
	assert.False(t, m.IsBitRangeSet(2, 12))
	assert.False(t, m.IsBitRangeSet(3, 13))
	assert.Equal(t, 10, m.CountMissingBlock())
	assert.Equal(t, int64(10), m.CompletedLength())

	m.UnsetBitRange(5, 6)
	assert.False(t, m.IsBitRangeSet(3, 12))
	assert.True(t, m.IsBitRangeSet(7, 12))
	assert.Equal(t, 12, m.CountMissingBlock())

	// ranges running past the end stop at the last block
	m.SetBitRange(18, 25)
	assert.True(t, m.IsBitRangeSet(18, 19))
	assert.False(t, m.IsBitRangeSet(18, 20))
	requireFreshCache(t, m)
}

func TestBitRangeUnboundedEnd(t *testing.T) {
	m := New(10, 25, nil)

	m.SetBitRange(0, math.MaxInt)
	assert.True(t, m.IsAllBitSet())
	assert.Equal(t, 0, m.CountMissingBlock())
	assert.Equal(t, int64(25), m.CompletedLength())
	requireFreshCache(t, m)

	assert.False(t, m.IsBitRangeSet(0, math.MaxInt))
	assert.False(t, m.IsBitRangeSet(-1, 2))

	m.UnsetBitRange(-5, math.MaxInt)
	assert.Equal(t, 3, m.CountMissingBlock())
	assert.Equal(t, int64(0), m.CompletedLength())
	requireFreshCache(t, m)

	// a range entirely outside the manager changes nothing
	m.SetBitRange(5, math.MaxInt)
	m.SetBitRange(math.MinInt, -1)
	assert.Equal(t, 3, m.CountMissingBlock())
	requireFreshCache(t, m)
}

func TestIsBitSetOffsetRange(t *testing.T) {
	m := New(10, 25, nil)

	tests := map[string]struct {
		offset int64
		length int64
	}{
		"clamped to last block": {22, 10},
		"inside last block":     {20, 5},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.False(t, m.IsBitSetOffsetRange(tt.offset, tt.length))
		})
	}

	m.SetBit(2)
	assert.True(t, m.IsBitSetOffsetRange(22, 10))
	assert.True(t, m.IsBitSetOffsetRange(20, 5))
	assert.False(t, m.IsBitSetOffsetRange(15, 10), "span reaches into block 1")

	m.SetBit(1)
	assert.True(t, m.IsBitSetOffsetRange(15, 10))
	assert.True(t, m.IsBitSetOffsetRange(10, 1000))
	assert.False(t, m.IsBitSetOffsetRange(0, 25))

	assert.False(t, m.IsBitSetOffsetRange(10, 0), "empty span")
	assert.False(t, m.IsBitSetOffsetRange(10, -1), "negative span")
	assert.False(t, m.IsBitSetOffsetRange(25, 1), "offset at the end")
	assert.False(t, m.IsBitSetOffsetRange(100, 1), "offset past the end")
}

func TestMissingUnusedLength(t *testing.T) {
	m := New(10, 25, nil)

	assert.Equal(t, int64(25), m.MissingUnusedLength(0))
	assert.Equal(t, int64(15), m.MissingUnusedLength(1))
	assert.Equal(t, int64(5), m.MissingUnusedLength(2))
	assert.Equal(t, int64(0), m.MissingUnusedLength(3))
	assert.Equal(t, int64(0), m.MissingUnusedLength(-1))

	m.SetUseBit(2)
	assert.Equal(t, int64(20), m.MissingUnusedLength(0))

	m.SetBit(1)
	assert.Equal(t, int64(10), m.MissingUnusedLength(0))
	assert.Equal(t, int64(0), m.MissingUnusedLength(1))
}

func TestFilter(t *testing.T) {
	m := New(10, 25, nil)

	m.AddFilter(10, 10)
	assert.False(t, m.IsFilterEnabled())
	assert.Equal(t, int64(10), m.FilteredTotalLengthNow())
	assert.Equal(t, int64(10), m.FilteredTotalLength())
	assert.Equal(t, 0, m.CountFilteredBlock())
	assert.Equal(t, 3, m.CountMissingBlockNow())

	m.EnableFilter()
	require.True(t, m.IsFilterEnabled())
	assert.Equal(t, 1, m.CountFilteredBlock())
	assert.Equal(t, 1, m.CountMissingBlockNow())
	assert.Equal(t, 1, m.CountMissingBlock())
	assert.False(t, m.IsFilteredAllBitSet())

	m.SetBit(0)
	assert.Equal(t, 1, m.CountMissingBlock())
	assert.Equal(t, int64(10), m.CompletedLength())
	assert.Equal(t, int64(0), m.FilteredCompletedLength())

	m.SetBit(1)
	assert.Equal(t, 0, m.CountMissingBlock())
	assert.Equal(t, int64(10), m.FilteredCompletedLength())
	assert.Equal(t, int64(20), m.CompletedLength())
	assert.True(t, m.IsFilteredAllBitSet())
	assert.False(t, m.IsAllBitSet())

	m.DisableFilter()
	assert.Equal(t, 1, m.CountMissingBlock())
	assert.Equal(t, 0, m.CountFilteredBlock())
	assert.Equal(t, int64(20), m.FilteredCompletedLength())
	assert.Equal(t, int64(10), m.FilteredTotalLength())
	assert.False(t, m.IsFilteredAllBitSet())

	m.EnableFilter()
	m.ClearFilter()
	assert.False(t, m.IsFilterEnabled())
	assert.Equal(t, int64(0), m.FilteredTotalLength())
	assert.Equal(t, 1, m.CountMissingBlock())
	requireFreshCache(t, m)
}

func TestFilterIsAdditive(t *testing.T) {
	m := New(10, 95, nil)

	m.AddFilter(0, 1)
	m.AddFilter(35, 10)
	m.AddFilter(90, 100)
	m.AddFilter(200, 10)
	m.AddFilter(0, 0)
	m.EnableFilter()

	assert.Equal(t, 4, m.CountFilteredBlock())
	// blocks 0, 3, 4 and the short last block 9
	assert.Equal(t, int64(35), m.FilteredTotalLength())

	m.SetBit(9)
	assert.Equal(t, int64(5), m.FilteredCompletedLength())
	m.SetBit(3)
	assert.Equal(t, int64(15), m.FilteredCompletedLength())
	assert.Equal(t, 2, m.CountMissingBlock())
	requireFreshCache(t, m)
}

func TestEnableFilterWithoutRanges(t *testing.T) {
	m := New(10, 25, fixed(0))

	m.EnableFilter()
	assert.Equal(t, 0, m.CountMissingBlock())
	assert.True(t, m.IsFilteredAllBitSet())

	_, ok := m.MissingIndex()
	assert.False(t, ok)
}
