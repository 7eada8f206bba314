package blockman

import "math/rand/v2"

// Randomizer returns an index uniformly distributed in [0, bound).
type Randomizer interface {
	RandomNumber(bound int) int
}

// RandomizerFunc adapts a plain function to Randomizer.
type RandomizerFunc func(bound int) int

func (f RandomizerFunc) RandomNumber(bound int) int { return f(bound) }

type defaultRandomizer struct{}

// NewRandomizer returns a Randomizer backed by the runtime's global source.
// It is safe to share between Managers.
func NewRandomizer() Randomizer { return defaultRandomizer{} }

func (defaultRandomizer) RandomNumber(bound int) int {
	if bound <= 0 {
		return 0
	}
	return rand.IntN(bound)
}
