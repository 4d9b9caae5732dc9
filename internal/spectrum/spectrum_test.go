package spectrum

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/coreman2200/oceanfft/internal/compute"
	"github.com/coreman2200/oceanfft/internal/texture"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func windy(size int) Parameters {
	p := DefaultParameters()
	p.Size = size
	p.WindSpeed = 10
	p.WindDirection = -20
	p.Swell = 0.4
	return p
}

type rig struct {
	arena *texture.Arena
	gen   *Generator
	evo   *Evolver
	dev   *compute.Device
}

func newRig(t *testing.T, size int, seed uint64) *rig {
	t.Helper()
	a := texture.NewArena(0)
	g, err := NewGenerator(a, size)
	require.NoError(t, err)
	e, err := NewEvolver(a, size)
	require.NoError(t, err)
	g.Seed(NewSeededNoise(seed))
	return &rig{arena: a, gen: g, evo: e, dev: compute.NewDevice(4)}
}

func (r *rig) generate(t *testing.T, p Parameters) {
	t.Helper()
	enc := compute.NewEncoder("generate")
	r.gen.Record(enc, p)
	require.NoError(t, r.dev.Submit(context.Background(), enc))
}

func (r *rig) evolve(t *testing.T, at float64) {
	t.Helper()
	enc := compute.NewEncoder("evolve")
	r.evo.Record(enc, at)
	require.NoError(t, r.dev.Submit(context.Background(), enc))
}

func (r *rig) field(n texture.Name) []mgl32.Vec4 {
	tex, _ := r.arena.Get(n)
	return append([]mgl32.Vec4(nil), tex.Level(0)...)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Parameters)
		want []error
	}{
		{"defaults", func(*Parameters) {}, nil},
		{"zero wind", func(p *Parameters) { p.WindSpeed = 0 }, []error{ErrInvalidWindSpeed}},
		{"negative wind", func(p *Parameters) { p.WindSpeed = -3 }, []error{ErrInvalidWindSpeed}},
		{"size not power of two", func(p *Parameters) { p.Size = 100 }, []error{ErrSizeNotPowerOfTwo}},
		{"inverted band", func(p *Parameters) { p.CutOffLow, p.CutOffHigh = 5, 1 }, []error{ErrInvalidCutoff}},
		{"zero depth", func(p *Parameters) { p.Depth = 0 }, []error{ErrInvalidParameter}},
		{"several at once", func(p *Parameters) { p.Size = 3; p.WindSpeed = 0 }, []error{ErrSizeNotPowerOfTwo, ErrInvalidWindSpeed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParameters()
			tt.edit(&p)
			err := p.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			for _, w := range tt.want {
				assert.True(t, errors.Is(err, w), "want %v in %v", w, err)
			}
		})
	}
}

func TestDerive(t *testing.T) {
	p := DefaultParameters()
	p.Swell = 3
	d := p.Derive()
	assert.Equal(t, 1.0, d.Swell)
	assert.InDelta(t, 200*math.Pi/180, d.Angle, 1e-12)
	assert.Greater(t, d.Alpha, 0.0)
	assert.Greater(t, d.PeakOmega, 0.0)

	p.Swell = 0
	assert.Equal(t, 0.01, p.Derive().Swell)
}

func TestFrequency(t *testing.T) {
	// deep water: ω² = g·k
	assert.InDelta(t, math.Sqrt(9.81*0.5), Frequency(0.5, 9.81, 500), 1e-9)
	// shallow water: ω ≈ k·√(g·h)
	assert.InDelta(t, 0.001*math.Sqrt(9.81*2), Frequency(0.001, 9.81, 2), 1e-7)

	k := 0.3
	w := Frequency(k, 9.81, 4)
	h := 1e-6
	numeric := (Frequency(k+h, 9.81, 4) - Frequency(k-h, 9.81, 4)) / (2 * h)
	assert.InDelta(t, numeric, FrequencyDerivative(k, 9.81, 4, w), 1e-6)
}

func TestDensityPeaksDownwind(t *testing.T) {
	p := windy(64)
	d := p.Derive()
	k := 0.05
	down, _ := Density(k*math.Cos(d.Angle), k*math.Sin(d.Angle), p, d)
	up, _ := Density(-k*math.Cos(d.Angle), -k*math.Sin(d.Angle), p, d)
	assert.Greater(t, down, 0.0)
	assert.Greater(t, down, up)

	s, omega := Density(0, 0, p, d)
	assert.Zero(t, s)
	assert.Zero(t, omega)
}

func TestSeededNoise(t *testing.T) {
	a := make([]mgl32.Vec4, 64)
	b := make([]mgl32.Vec4, 64)
	NewSeededNoise(7).Fill(a)
	NewSeededNoise(7).Fill(b)
	assert.Equal(t, a, b)

	src := NewSeededNoise(7)
	src.Fill(b)
	src.Fill(b)
	assert.NotEqual(t, a, b, "a second draw continues the stream")

	for _, v := range a {
		for c := 0; c < 4; c++ {
			assert.Greater(t, v[c], float32(0))
			assert.LessOrEqual(t, v[c], float32(1))
		}
	}
}

func TestInitialSpectrumConjugateSymmetry(t *testing.T) {
	const n = 32
	r := newRig(t, n, 1)
	r.generate(t, windy(n))
	h0 := r.field(H0)

	nonZero := 0
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			v := h0[y*n+x]
			m := h0[((n-y)%n)*n+(n-x)%n]
			assert.Equal(t, v[0], m[2], "(%d,%d)", x, y)
			assert.Equal(t, v[1], -m[3], "(%d,%d)", x, y)
			if v[0] != 0 || v[1] != 0 {
				nonZero++
			}
		}
	}
	assert.Greater(t, nonZero, n*n/2)

	// k = 0 sits at the grid centre
	assert.Equal(t, mgl32.Vec4{}, h0[n/2*n+n/2])
}

func TestInitialSpectrumBand(t *testing.T) {
	const n = 32
	p := windy(n)
	p.CutOffLow = 3 * p.DeltaK()
	p.CutOffHigh = 6 * p.DeltaK()
	r := newRig(t, n, 1)
	r.generate(t, p)

	h0k := r.field(H0K)
	waves := r.field(WavesData)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			i := y*n + x
			k := math.Hypot(float64(x-n/2), float64(y-n/2)) * p.DeltaK()
			if p.InBand(k) {
				assert.Greater(t, waves[i][3], float32(0))
				assert.InDelta(t, 1/k, waves[i][1], 1e-4)
				continue
			}
			assert.Zero(t, waves[i][3])
			assert.Equal(t, float32(1), waves[i][1])
			assert.Equal(t, mgl32.Vec4{}, h0k[i])
		}
	}
}

func TestInitialSpectrumIdempotent(t *testing.T) {
	const n = 16
	r := newRig(t, n, 3)
	p := windy(n)
	r.generate(t, p)
	first := r.field(H0)
	r.generate(t, p)
	assert.Equal(t, first, r.field(H0))
}

func TestEvolveIsPureInTime(t *testing.T) {
	const n = 16
	r := newRig(t, n, 5)
	r.generate(t, windy(n))

	r.evolve(t, TimeOffset+1.5)
	a1, b1 := r.field(AmpDxDz), r.field(AmpDyxDyz)
	r.evolve(t, TimeOffset+4)
	r.evolve(t, TimeOffset+1.5)
	assert.Equal(t, a1, r.field(AmpDxDz))
	assert.Equal(t, b1, r.field(AmpDyxDyz))

	r.evolve(t, TimeOffset+2)
	assert.NotEqual(t, a1, r.field(AmpDxDz))
}

func TestEvaluateHermitianPair(t *testing.T) {
	h := mgl32.Vec4{0.3, -0.2, 0.1, 0.4}
	mirror := mgl32.Vec4{0.1, -0.4, 0.3, 0.2} // h0(-k), conj(h0(k))
	wave := mgl32.Vec4{0.6, 1 / 1.0, 0.8, 2.2}
	neg := mgl32.Vec4{-0.6, 1 / 1.0, -0.8, 2.2}

	a := evaluate(h, wave, 37)
	b := evaluate(mirror, neg, 37)
	assert.InDelta(t, real(a.dy), real(b.dy), 1e-6)
	assert.InDelta(t, imag(a.dy), -imag(b.dy), 1e-6)
	assert.InDelta(t, real(a.dx), real(b.dx), 1e-6)
	assert.InDelta(t, imag(a.dx), -imag(b.dx), 1e-6)
}
