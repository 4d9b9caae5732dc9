package spectrum

import (
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
)

// NoiseSource supplies the per-cell uniforms the spectrum is built from.
// Fill writes four independent samples in (0, 1] into every texel.
type NoiseSource interface {
	Fill(dst []mgl32.Vec4)
}

// SeededNoise is a deterministic NoiseSource. Successive Fill calls
// continue one stream, so a surface reset draws fresh noise while two
// sources built from the same seed agree call for call.
type SeededNoise struct {
	rng *rand.Rand
}

func NewSeededNoise(seed uint64) *SeededNoise {
	return &SeededNoise{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *SeededNoise) Fill(dst []mgl32.Vec4) {
	for i := range dst {
		dst[i] = mgl32.Vec4{s.uniform(), s.uniform(), s.uniform(), s.uniform()}
	}
}

func (s *SeededNoise) uniform() float32 {
	return float32(1 - s.rng.Float64())
}
