package picker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danferreira/blocktrack/internal/bitfield"
	"github.com/danferreira/blocktrack/internal/blockman"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

type Strategy uint8

const (
	// Random starts at a random byte of the candidate mask.
	Random Strategy = iota
	// Sequential requests the lowest missing block first.
	Sequential
	// Sparse starts new requests in the largest free gap.
	Sparse
)

func (s Strategy) String() string {
	switch s {
	case Random:
		return "random"
	case Sequential:
		return "sequential"
	case Sparse:
		return "sparse"
	}

	return ""
}

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "random", "":
		return Random, nil
	case "sequential", "inorder":
		return Sequential, nil
	case "sparse":
		return Sparse, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// pick chooses a missing, unreserved block that peer has. It does not
// reserve it.
func pick(m *blockman.Manager, s Strategy, peer bitfield.Bitfield) (int, bool) {
	if len(peer) != m.BitfieldLength() {
		return 0, false
	}

	switch s {
	case Sequential:
		wanted := bitfield.New(m.CountBlock())
		if !m.AllMissingUnusedIndexes(wanted, peer) {
			return 0, false
		}
		for i := 0; i < m.CountBlock(); i++ {
			if wanted.HasPiece(i) {
				return i, true
			}
		}
		return 0, false
	case Sparse:
		// the sparse gap ignores both the peer and the filter
		wanted := bitfield.New(m.CountBlock())
		if !m.AllMissingUnusedIndexes(wanted, peer) {
			return 0, false
		}
		if index, ok := m.SparseMissingUnusedIndex(); ok && wanted.HasPiece(index) {
			return index, true
		}
		return m.MissingUnusedIndexFrom(peer)
	default:
		return m.MissingUnusedIndexFrom(peer)
	}
}
