// internal/worldgen/hash.go
package worldgen

// mix32 is a murmur-style finalizer. Good avalanche for cheap per-chunk
// seeding.
func mix32(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return x
}

// chunkSeed derives a 64-bit stream seed from the world seed and chunk
// coordinates. Wrapping arithmetic, any inputs are fine.
func chunkSeed(seed int64, cx, cz int) uint64 {
	h := uint32(seed) ^ mix32(uint32(seed>>32))
	h ^= mix32(uint32(int32(cx)) * 0x9e3779b1)
	h ^= mix32(uint32(int32(cz)) * 0x85ebca6b)
	lo := mix32(h)
	hi := mix32(h ^ 0x9e3779b1)
	return uint64(hi)<<32 | uint64(lo)
}

// seq is a 64-bit LCG drawing values in [0, 1). One instance per chunk
// feature stream so adding a draw to one feature never shifts another.
type seq struct {
	state uint64
}

func newSeq(seed uint64) *seq {
	s := &seq{state: seed}
	s.next()
	return s
}

func (s *seq) next() float64 {
	s.state = s.state*6364136223846793005 + 1442695040888963407
	return float64(s.state>>11) / (1 << 53)
}

// rangef draws a value in [lo, hi).
func (s *seq) rangef(lo, hi float64) float64 {
	return lo + s.next()*(hi-lo)
}

// intn draws an integer in [0, n).
func (s *seq) intn(n int) int {
	return int(s.next() * float64(n))
}
