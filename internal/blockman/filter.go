package blockman

import "github.com/danferreira/blocktrack/internal/bitfield"

// AddFilter adds the blocks covering the byte span [offset, offset+length)
// to the filter. The filter is not enabled by this call.
func (m *Manager) AddFilter(offset, length int64) {
	m.ensureFilter()
	if start, end, ok := m.blockSpan(offset, length); ok {
		for i := start; i <= end && i < m.blocks; i++ {
			m.filterBitfield.Put(m.blocks, i, true)
		}
	}
	m.updateCache()
}

// EnableFilter restricts every aggregate and selection to filtered blocks.
// Enabling without any AddFilter call leaves nothing visible.
func (m *Manager) EnableFilter() {
	m.ensureFilter()
	m.filterEnabled = true
	m.updateCache()
}

func (m *Manager) DisableFilter() {
	m.filterEnabled = false
	m.updateCache()
}

// ClearFilter discards the filter and disables filtering.
func (m *Manager) ClearFilter() {
	m.filterBitfield = nil
	m.filterEnabled = false
	m.updateCache()
}

func (m *Manager) IsFilterEnabled() bool { return m.filterEnabled }

func (m *Manager) ensureFilter() {
	if m.filterBitfield == nil {
		m.filterBitfield = bitfield.New(m.blocks)
	}
}
