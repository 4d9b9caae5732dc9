package spectrum

import (
	"math"

	"github.com/coreman2200/oceanfft/internal/compute"
	"github.com/coreman2200/oceanfft/internal/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// Field names owned by the spectrum stages.
const (
	Noise     texture.Name = "noise"
	WavesData texture.Name = "waves_data"
	H0K       texture.Name = "h0k"
	H0        texture.Name = "h0"
	AmpDxDz   texture.Name = "amp_dx_dz"
	AmpDyxDyz texture.Name = "amp_dyx_dyz"
)

// minUniform keeps Box–Muller away from log(0).
const minUniform = 1e-7

// Generator builds the initial spectrum of one surface in three passes:
// per-cell wave data, h0(k) from noise and the JONSWAP model, and the
// conjugate pairing h0 = (h0(k), conj(h0(-k))).
type Generator struct {
	size  int
	noise *texture.Texture
	waves *texture.Binding
	amp   *texture.Binding
	conj  *texture.Binding
}

// NewGenerator allocates the noise, wave data and spectrum fields in a.
func NewGenerator(a *texture.Arena, size int) (*Generator, error) {
	noise, err := a.Create(Noise, size, size, 1)
	if err != nil {
		return nil, err
	}
	for _, n := range []texture.Name{WavesData, H0K, H0} {
		if _, err := a.Create(n, size, size, 1); err != nil {
			return nil, err
		}
	}
	g := &Generator{size: size, noise: noise}
	if g.waves, err = a.Bind("wave data", texture.Access{
		Writes: []texture.Ref{texture.Base(WavesData)},
	}); err != nil {
		return nil, err
	}
	if g.amp, err = a.Bind("initial spectrum", texture.Access{
		Reads:  []texture.Ref{texture.Base(Noise), texture.Base(WavesData)},
		Writes: []texture.Ref{texture.Base(H0K)},
	}); err != nil {
		return nil, err
	}
	if g.conj, err = a.Bind("conjugate spectrum", texture.Access{
		Reads:  []texture.Ref{texture.Base(H0K)},
		Writes: []texture.Ref{texture.Base(H0)},
	}); err != nil {
		return nil, err
	}
	return g, nil
}

// Seed draws the per-cell uniforms. It runs at construction and on reset,
// never on a plain parameter change.
func (g *Generator) Seed(src NoiseSource) { src.Fill(g.noise.Level(0)) }

// Record appends the three generation passes for p to enc.
func (g *Generator) Record(enc *compute.Encoder, p Parameters) {
	d := p.Derive()
	n := g.size
	enc.Dispatch("initial spectrum: wave data", n, n, g.waveData(p))
	enc.Dispatch("initial spectrum: h0", n, n, g.amplitude(p, d))
	enc.Dispatch("initial spectrum: conjugate", n, n, g.conjugate())
}

func (g *Generator) waveData(p Parameters) compute.Kernel {
	out := g.waves.Write(texture.Base(WavesData))
	n, dk := g.size, p.DeltaK()
	return func(x, y int) {
		kx := float64(x-n/2) * dk
		kz := float64(y-n/2) * dk
		k := math.Hypot(kx, kz)
		if k > 0 && p.InBand(k) {
			out[y*n+x] = mgl32.Vec4{float32(kx), float32(1 / k), float32(kz), float32(Frequency(k, p.Gravity, p.Depth))}
			return
		}
		out[y*n+x] = mgl32.Vec4{float32(kx), 1, float32(kz), 0}
	}
}

func (g *Generator) amplitude(p Parameters, d Derived) compute.Kernel {
	noise := g.amp.Read(texture.Base(Noise))
	waves := g.amp.Read(texture.Base(WavesData))
	out := g.amp.Write(texture.Base(H0K))
	n, dk := g.size, p.DeltaK()
	return func(x, y int) {
		i := y*n + x
		if waves[i][3] == 0 {
			out[i] = mgl32.Vec4{}
			return
		}
		kx := float64(x-n/2) * dk
		kz := float64(y-n/2) * dk
		s, _ := Density(kx, kz, p, d)
		re, im := gauss(noise[i])
		a := math.Sqrt(2 * s * dk * dk)
		out[i] = mgl32.Vec4{float32(re * a), float32(im * a), 0, 0}
	}
}

func (g *Generator) conjugate() compute.Kernel {
	in := g.conj.Read(texture.Base(H0K))
	out := g.conj.Write(texture.Base(H0))
	n := g.size
	return func(x, y int) {
		h := in[y*n+x]
		m := in[((n-y)%n)*n+(n-x)%n]
		out[y*n+x] = mgl32.Vec4{h[0], h[1], m[0], -m[1]}
	}
}

// gauss maps four uniforms to one complex standard normal sample.
func gauss(u mgl32.Vec4) (re, im float64) {
	u0 := math.Max(float64(u[0]), minUniform)
	u2 := math.Max(float64(u[2]), minUniform)
	re = math.Sqrt(-2*math.Log(u0)) * math.Cos(2*math.Pi*float64(u[1]))
	im = math.Sqrt(-2*math.Log(u2)) * math.Cos(2*math.Pi*float64(u[3]))
	return re, im
}
