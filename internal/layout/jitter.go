// Package layout turns dependency trees into absolutely positioned canvas
// graphs. Placement is fully deterministic: ring positions come from the
// golden-angle sequence and scatter comes from a seeded PRNG, so identical
// input always yields identical coordinates.
package layout

// Jitter is a deterministic PRNG in the mulberry32 family: a 32-bit state
// advanced by a Weyl increment and finalized with a short mix. Good enough
// for visual scatter, cheap, and exactly reproducible for a given seed.
type Jitter struct {
	state uint32
}

// NewJitter returns a generator starting from the given seed.
func NewJitter(seed uint32) *Jitter {
	return &Jitter{state: seed}
}

// SeedFor derives a scatter seed from a center's display name: the sum of
// its character codes. Different centers get visibly different scatter,
// while the same center always gets the same one.
func SeedFor(name string) uint32 {
	var sum uint32
	for _, r := range name {
		sum += uint32(r)
	}
	return sum
}

// Next advances the state and returns the next value in [0, 1).
func (j *Jitter) Next() float64 {
	j.state += 0x6D2B79F5
	z := j.state
	z = (z ^ (z >> 15)) * (z | 1)
	z ^= z + (z^(z>>7))*(z|61)
	return float64(z^(z>>14)) / 4294967296.0
}

// Angle perturbs base by at most ±spread radians.
func (j *Jitter) Angle(base, spread float64) float64 {
	return base + (j.Next()*2-1)*spread
}

// Radius perturbs base by at most ±frac of itself.
func (j *Jitter) Radius(base, frac float64) float64 {
	return base * (1 + (j.Next()*2-1)*frac)
}
