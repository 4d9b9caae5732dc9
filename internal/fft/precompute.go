package fft

import (
	"math"
	"math/bits"

	"github.com/coreman2200/oceanfft/internal/compute"
	"github.com/coreman2200/oceanfft/internal/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// Precompute records the pass that fills the twiddle table. It depends on
// the grid size only and needs to run once per engine.
//
// Texel (s, y) holds (Re w, Im w, top, bottom) for butterfly stage s and
// row y: out[y] = in[top] + w·in[bottom]. Stage 0 reads its inputs in
// bit-reversed order, so no separate input permutation pass exists.
func (e *Engine) Precompute(enc *compute.Encoder) {
	out := e.table.Write(texture.Base(Precomputed))
	n, stages := e.size, e.stages
	enc.Dispatch("fft: precompute", stages, n, func(s, y int) {
		out[y*stages+s] = twiddle(n, stages, s, y)
	})
}

func twiddle(n, stages, s, y int) mgl32.Vec4 {
	span := 1 << s
	k := (y * n >> (s + 1)) % n
	sin, cos := math.Sincos(2 * math.Pi * float64(k) / float64(n))
	top := y%(span<<1) < span

	var a, b int
	switch {
	case s == 0 && top:
		a, b = reverse(y, stages), reverse(y+1, stages)
	case s == 0:
		a, b = reverse(y-1, stages), reverse(y, stages)
	case top:
		a, b = y, y+span
	default:
		a, b = y-span, y
	}
	return mgl32.Vec4{float32(cos), float32(sin), float32(a), float32(b)}
}

func reverse(i, width int) int {
	return int(bits.Reverse32(uint32(i)) >> (32 - width))
}
