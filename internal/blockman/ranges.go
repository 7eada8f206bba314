package blockman

// IsBitRangeSet reports whether every block in [start, end] is complete.
// A range reaching outside the manager is never set.
func (m *Manager) IsBitRangeSet(start, end int) bool {
	if start < 0 || end >= m.blocks {
		return false
	}
	for i := start; i <= end; i++ {
		if !m.IsBitSet(i) {
			return false
		}
	}
	return true
}

// SetBitRange marks [start, end] complete. The range is clipped to the
// valid block indexes.
func (m *Manager) SetBitRange(start, end int) {
	start, end = m.clip(start, end)
	for i := start; i <= end; i++ {
		m.bitfield.Put(m.blocks, i, true)
	}
	m.updateCache()
}

// UnsetBitRange marks [start, end] incomplete, clipped like SetBitRange.
func (m *Manager) UnsetBitRange(start, end int) {
	start, end = m.clip(start, end)
	for i := start; i <= end; i++ {
		m.bitfield.Put(m.blocks, i, false)
	}
	m.updateCache()
}

// clip bounds [start, end] to [0, MaxIndex]. The result is empty
// (start > end) when nothing of the range is valid.
func (m *Manager) clip(start, end int) (int, int) {
	return max(start, 0), min(end, m.blocks-1)
}

// blockSpan converts a byte span into the inclusive block range covering
// it. The span is clipped to the total length; ok is false when nothing of
// it lies inside the resource.
func (m *Manager) blockSpan(offset, length int64) (start, end int, ok bool) {
	if length <= 0 || offset < 0 || offset >= m.totalLength || m.blockLength <= 0 {
		return 0, 0, false
	}
	if m.totalLength-offset < length {
		length = m.totalLength - offset
	}
	return int(offset / m.blockLength), int((offset + length - 1) / m.blockLength), true
}

// IsBitSetOffsetRange reports whether every block touched by the byte span
// [offset, offset+length) is complete.
func (m *Manager) IsBitSetOffsetRange(offset, length int64) bool {
	start, end, ok := m.blockSpan(offset, length)
	if !ok {
		return false
	}
	return m.IsBitRangeSet(start, end)
}

// MissingUnusedLength sums the lengths of consecutive free blocks starting
// at start.
func (m *Manager) MissingUnusedLength(start int) int64 {
	if start < 0 || start >= m.blocks {
		return 0
	}
	var length int64
	for i := start; i < m.blocks && !m.occupied(i); i++ {
		length += m.BlockLengthAt(i)
	}
	return length
}
