package blockman

import "github.com/danferreira/blocktrack/internal/bitfield"

// updateCache recomputes every aggregate from the masks. Every mutator of
// the completion mask, the filter or the filter switch calls it before
// returning.
func (m *Manager) updateCache() {
	m.cachedNumMissingBlock = m.CountMissingBlockNow()
	m.cachedNumFilteredBlock = m.CountFilteredBlockNow()
	m.cachedFilteredTotalLength = m.FilteredTotalLengthNow()
	m.cachedCompletedLength = m.CompletedLengthNow()
	m.cachedFilteredCompletedLength = m.FilteredCompletedLengthNow()
}

// CountMissingBlock returns the number of incomplete blocks, counting only
// filtered blocks when the filter is enabled.
func (m *Manager) CountMissingBlock() int { return m.cachedNumMissingBlock }

func (m *Manager) CountMissingBlockNow() int {
	if m.filterEnabled {
		done := bitfield.Materialize(bitfield.And(m.bitfield, m.filterBitfield), m.blocks)
		return m.filterBitfield.Count(m.blocks) - done.Count(m.blocks)
	}
	return m.blocks - m.bitfield.Count(m.blocks)
}

// CountFilteredBlock returns the number of filtered blocks, or 0 when the
// filter is disabled.
func (m *Manager) CountFilteredBlock() int { return m.cachedNumFilteredBlock }

func (m *Manager) CountFilteredBlockNow() int {
	if !m.filterEnabled {
		return 0
	}
	return m.filterBitfield.Count(m.blocks)
}

// FilteredTotalLength returns the byte size of the filtered blocks,
// whether or not the filter is enabled.
func (m *Manager) FilteredTotalLength() int64 { return m.cachedFilteredTotalLength }

func (m *Manager) FilteredTotalLengthNow() int64 {
	if m.filterBitfield == nil {
		return 0
	}
	return m.lengthOf(m.filterBitfield)
}

func (m *Manager) CompletedLength() int64 { return m.cachedCompletedLength }

func (m *Manager) CompletedLengthNow() int64 {
	return m.completedLength(false)
}

// FilteredCompletedLength returns the byte size of complete blocks that
// are also filtered. It equals CompletedLength when the filter is off.
func (m *Manager) FilteredCompletedLength() int64 { return m.cachedFilteredCompletedLength }

func (m *Manager) FilteredCompletedLengthNow() int64 {
	return m.completedLength(true)
}

func (m *Manager) completedLength(useFilter bool) int64 {
	if useFilter && m.filterEnabled {
		return m.lengthOf(bitfield.Materialize(bitfield.And(m.bitfield, m.filterBitfield), m.blocks))
	}
	return m.lengthOf(m.bitfield)
}

// lengthOf converts the set bits of bf into bytes, accounting for a short
// last block.
func (m *Manager) lengthOf(bf bitfield.Bitfield) int64 {
	n := int64(bf.Count(m.blocks))
	switch {
	case n == 0:
		return 0
	case bf.Test(m.blocks, m.blocks-1):
		return (n-1)*m.blockLength + m.LastBlockLength()
	default:
		return n * m.blockLength
	}
}
