// Package post turns the transformed amplitude grids into the fields a
// renderer samples: displacement, derivatives with smoothed turbulence,
// and their mip chains.
package post

import (
	"math"

	"github.com/coreman2200/oceanfft/internal/compute"
	"github.com/coreman2200/oceanfft/internal/spectrum"
	"github.com/coreman2200/oceanfft/internal/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// Output fields. Both carry MipLevels levels.
const (
	Displacement texture.Name = "displacement"
	Derivatives  texture.Name = "derivatives"
	Turbulence   texture.Name = "turbulence"
)

const (
	MipLevels = 4

	// DefaultLambda exaggerates horizontal displacement.
	DefaultLambda = 1.2

	// TurbulenceTau is the recovery time constant of the turbulence term, seconds.
	TurbulenceTau = 2.0
)

// MergeParams is captured by value for one frame.
type MergeParams struct {
	Lambda    float64
	DeltaTime float64 // seconds
}

// Merger writes displacement (λ·Dx, Dy, λ·Dz, 0) and derivatives
// (slope x, slope z, jacobian, turbulence) from the transformed amplitudes.
//
// Turbulence is the one piece of state carried between frames: it drops to
// the jacobian at once where the surface compresses and relaxes back with
// time constant TurbulenceTau. The unblurred value persists in its own
// field; derivatives.w receives a 3×3 wrap-around box blur of it.
type Merger struct {
	size  int
	turb  *texture.Texture
	merge *texture.Binding
	blur  *texture.Binding
}

// NewMerger allocates the output and turbulence fields in a. The amplitude
// grids must already exist.
func NewMerger(a *texture.Arena, size int) (*Merger, error) {
	for _, n := range []texture.Name{Displacement, Derivatives} {
		if _, err := a.Create(n, size, size, MipLevels); err != nil {
			return nil, err
		}
	}
	turb, err := a.Create(Turbulence, size, size, 1)
	if err != nil {
		return nil, err
	}
	m := &Merger{size: size, turb: turb}
	if m.merge, err = a.Bind("merge", texture.Access{
		Reads:   []texture.Ref{texture.Base(spectrum.AmpDxDz), texture.Base(spectrum.AmpDyxDyz)},
		Writes:  []texture.Ref{texture.Base(Displacement), texture.Base(Derivatives)},
		InPlace: []texture.Ref{texture.Base(Turbulence)},
	}); err != nil {
		return nil, err
	}
	if m.blur, err = a.Bind("blur turbulence", texture.Access{
		Reads:   []texture.Ref{texture.Base(Turbulence)},
		InPlace: []texture.Ref{texture.Base(Derivatives)},
	}); err != nil {
		return nil, err
	}
	m.Reset()
	return m, nil
}

// Reset forgets the turbulence history.
func (m *Merger) Reset() { m.turb.Fill(mgl32.Vec4{1, 0, 0, 0}) }

// Record appends the merge and blur passes.
func (m *Merger) Record(enc *compute.Encoder, p MergeParams) {
	n := m.size
	enc.Dispatch("merge", n, n, m.mergeKernel(p))
	enc.Dispatch("merge: blur turbulence", n, n, m.blurKernel())
}

// Decay is the blend weight toward the new jacobian after dt seconds.
func Decay(dt float64) float64 { return 1 - math.Exp(-dt/TurbulenceTau) }

func (m *Merger) mergeKernel(p MergeParams) compute.Kernel {
	dxdz := m.merge.Read(texture.Base(spectrum.AmpDxDz))
	dyx := m.merge.Read(texture.Base(spectrum.AmpDyxDyz))
	disp := m.merge.Write(texture.Base(Displacement))
	deriv := m.merge.Write(texture.Base(Derivatives))
	turb := m.merge.Write(texture.Base(Turbulence))
	lambda := float32(p.Lambda)
	decay := float32(Decay(p.DeltaTime))
	n := m.size

	return func(x, y int) {
		i := y*n + x
		a, b := dxdz[i], dyx[i]
		dx, dz, dy, dxz := a[0], a[1], a[2], a[3]
		dyxv, dyz, dxx, dzz := b[0], b[1], b[2], b[3]

		disp[i] = mgl32.Vec4{lambda * dx, dy, lambda * dz, 0}

		jacobian := (1+lambda*dxx)*(1+lambda*dzz) - lambda*lambda*dxz*dxz
		prev := turb[i][0]
		t := min(jacobian, prev+(jacobian-prev)*decay)
		turb[i] = mgl32.Vec4{t, 0, 0, 0}

		deriv[i] = mgl32.Vec4{dyxv / (1 + lambda*dxx), dyz / (1 + lambda*dzz), jacobian, t}
	}
}

func (m *Merger) blurKernel() compute.Kernel {
	turb := m.blur.Read(texture.Base(Turbulence))
	deriv := m.blur.Write(texture.Base(Derivatives))
	n := m.size
	return func(x, y int) {
		var sum float32
		for dy := -1; dy <= 1; dy++ {
			row := ((y + dy + n) % n) * n
			for dx := -1; dx <= 1; dx++ {
				sum += turb[row+(x+dx+n)%n][0]
			}
		}
		deriv[y*n+x][3] = sum / 9
	}
}
