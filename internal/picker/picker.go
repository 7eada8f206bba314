package picker

import (
	"log/slog"
	"sync"

	"github.com/danferreira/blocktrack/internal/bitfield"
	"github.com/danferreira/blocktrack/internal/blockman"
)

type Config struct {
	Strategy Strategy
}

func NewDefaultConfig() Config {
	return Config{
		Strategy: Random,
	}
}

// Work is a block handed out to a peer.
type Work struct {
	Index  int
	Offset int64
	Length int64
}

type Stats struct {
	Completed int64
	Left      int64
	Size      int64
	Missing   int
}

// Picker serializes access to a Manager so that many peer connections can
// share it.
type Picker struct {
	mu      sync.Mutex
	manager *blockman.Manager
	config  Config
	logger  *slog.Logger
}

func New(m *blockman.Manager, config Config) *Picker {
	return &Picker{
		manager: m,
		config:  config,
		logger:  slog.With("strategy", config.Strategy.String()),
	}
}

// Next reserves a block that peer has and we still need.
func (p *Picker) Next(peer bitfield.Bitfield) (Work, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.next(peer)
}

func (p *Picker) next(peer bitfield.Bitfield) (Work, bool) {
	index, ok := pick(p.manager, p.config.Strategy, peer)
	if !ok {
		return Work{}, false
	}

	p.manager.SetUseBit(index)
	p.logger.Debug("block reserved", "index", index)

	return workFor(p.manager, index), true
}

// Complete marks a reserved block as received and verified.
func (p *Picker) Complete(index int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.complete(index)
}

func (p *Picker) complete(index int) bool {
	if !p.manager.SetBit(index) {
		p.logger.Warn("completed block out of range", "index", index)
		return false
	}
	p.manager.UnsetUseBit(index)
	p.logger.Debug("block completed", "index", index, "missing", p.manager.CountMissingBlock())

	return true
}

// Release gives a reserved block back, e.g. after a failed or timed out
// request.
func (p *Picker) Release(index int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.release(index)
}

func (p *Picker) release(index int) bool {
	if !p.manager.UnsetUseBit(index) {
		return false
	}
	p.logger.Debug("block released", "index", index)

	return true
}

// Interested reports whether peer has anything we lack.
func (p *Picker) Interested(peer bitfield.Bitfield) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.manager.HasMissingPiece(peer)
}

func (p *Picker) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.manager.IsFilteredAllBitSet()
}

func (p *Picker) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return statsOf(p.manager)
}

// Bitfield returns a copy of the completion mask, suitable for sending to
// peers or saving as resume data.
func (p *Picker) Bitfield() bitfield.Bitfield {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.manager.Bitfield()
}

func workFor(m *blockman.Manager, index int) Work {
	return Work{
		Index:  index,
		Offset: int64(index) * m.BlockLength(),
		Length: m.BlockLengthAt(index),
	}
}

func statsOf(m *blockman.Manager) Stats {
	size := m.TotalLength()
	if m.IsFilterEnabled() {
		size = m.FilteredTotalLength()
	}
	completed := m.FilteredCompletedLength()

	return Stats{
		Completed: completed,
		Left:      size - completed,
		Size:      size,
		Missing:   m.CountMissingBlock(),
	}
}
