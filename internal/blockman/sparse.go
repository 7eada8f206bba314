package blockman

// blockRange is the half-open run [start, end) of block indexes.
type blockRange struct {
	start int
	end   int
}

func (r blockRange) size() int { return r.end - r.start }

func (r blockRange) mid() int { return r.start + r.size()/2 }

func (r blockRange) less(o blockRange) bool { return r.size() < o.size() }

func (m *Manager) occupied(index int) bool {
	return m.IsBitSet(index) || m.IsUseBitSet(index)
}

// nextFree returns the first free block at or after index, or the block
// count if there is none.
func (m *Manager) nextFree(index int) int {
	for index < m.blocks && m.occupied(index) {
		index++
	}
	return index
}

// nextOccupied returns the first occupied block at or after index, or the
// block count if there is none.
func (m *Manager) nextOccupied(index int) int {
	for index < m.blocks && !m.occupied(index) {
		index++
	}
	return index
}

// largestFreeRange returns the longest run of blocks that are neither
// complete nor reserved. Ties go to the run found first.
func (m *Manager) largestFreeRange() blockRange {
	var best blockRange
	for next := 0; next < m.blocks; {
		cur := blockRange{start: m.nextFree(next)}
		if cur.start == m.blocks {
			break
		}
		cur.end = m.nextOccupied(cur.start)
		if best.less(cur) {
			best = cur
		}
		next = cur.end
	}
	return best
}

// SparseMissingUnusedIndex picks a block from the largest gap between
// complete or reserved blocks, so that concurrent requests spread out. A
// gap at the front is filled from block 0; a gap that follows a reserved
// block is split in half so the new request does not run into the
// in-flight one; any other gap is started at its first block.
func (m *Manager) SparseMissingUnusedIndex() (int, bool) {
	r := m.largestFreeRange()
	switch {
	case r.size() == 0:
		return 0, false
	case r.start == 0:
		return 0, true
	case m.IsUseBitSet(r.start - 1):
		return r.mid(), true
	default:
		return r.start, true
	}
}
