package spectrum

import (
	"math"

	"github.com/coreman2200/oceanfft/internal/compute"
	"github.com/coreman2200/oceanfft/internal/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// TimeOffset is added to the simulation clock before evolution; phases
// near t = 0 line up and show as a visible pattern.
const TimeOffset = 10000.0

// Evolver advances h0 to time t and packs the eight displacement and
// derivative spectra into two complex-pair grids:
//
//	amp_dx_dz   = (Dx + i·Dz, Dy + i·Dxz)
//	amp_dyx_dyz = (Dyx + i·Dyz, Dxx + i·Dzz)
//
// Each signal is real in the spatial domain, so two of them share one
// complex transform.
type Evolver struct {
	size int
	dx   *texture.Binding
	dyx  *texture.Binding
}

// NewEvolver allocates the two amplitude fields in a. The Generator's
// fields must already exist.
func NewEvolver(a *texture.Arena, size int) (*Evolver, error) {
	for _, n := range []texture.Name{AmpDxDz, AmpDyxDyz} {
		if _, err := a.Create(n, size, size, 1); err != nil {
			return nil, err
		}
	}
	reads := []texture.Ref{texture.Base(H0), texture.Base(WavesData)}
	e := &Evolver{size: size}
	var err error
	if e.dx, err = a.Bind("time spectrum: dx dz", texture.Access{
		Reads: reads, Writes: []texture.Ref{texture.Base(AmpDxDz)},
	}); err != nil {
		return nil, err
	}
	if e.dyx, err = a.Bind("time spectrum: dyx dyz", texture.Access{
		Reads: reads, Writes: []texture.Ref{texture.Base(AmpDyxDyz)},
	}); err != nil {
		return nil, err
	}
	return e, nil
}

// Record appends the evolution passes for time t. The caller adds
// TimeOffset.
func (e *Evolver) Record(enc *compute.Encoder, t float64) {
	n := e.size
	h0 := e.dx.Read(texture.Base(H0))
	waves := e.dx.Read(texture.Base(WavesData))
	dxdz := e.dx.Write(texture.Base(AmpDxDz))
	enc.Dispatch("time spectrum: dx dz", n, n, func(x, y int) {
		i := y*n + x
		a := evaluate(h0[i], waves[i], t)
		dxdz[i] = pack(a.dx, a.dz, a.dy, a.dzdx)
	})

	h0 = e.dyx.Read(texture.Base(H0))
	waves = e.dyx.Read(texture.Base(WavesData))
	dyx := e.dyx.Write(texture.Base(AmpDyxDyz))
	enc.Dispatch("time spectrum: dyx dyz", n, n, func(x, y int) {
		i := y*n + x
		a := evaluate(h0[i], waves[i], t)
		dyx[i] = pack(a.dydx, a.dydz, a.dxdx, a.dzdz)
	})
}

type amplitudes struct {
	dx, dy, dz       complex128
	dxdx, dydx, dzdx complex128
	dydz, dzdz       complex128
}

func evaluate(h0, wave mgl32.Vec4, t float64) amplitudes {
	kx, invK, kz, omega := float64(wave[0]), float64(wave[1]), float64(wave[2]), float64(wave[3])
	e := cmplxExp(omega * t)
	h := complex(float64(h0[0]), float64(h0[1]))*e +
		complex(float64(h0[2]), float64(h0[3]))*conj(e)
	ih := complex(-imag(h), real(h))
	return amplitudes{
		dx:   ih * complex(kx*invK, 0),
		dy:   h,
		dz:   ih * complex(kz*invK, 0),
		dxdx: -h * complex(kx*kx*invK, 0),
		dydx: ih * complex(kx, 0),
		dzdx: -h * complex(kx*kz*invK, 0),
		dydz: ih * complex(kz, 0),
		dzdz: -h * complex(kz*kz*invK, 0),
	}
}

// pack stores a + i·b and c + i·d for spectra a, b, c, d of real signals.
func pack(a, b, c, d complex128) mgl32.Vec4 {
	return mgl32.Vec4{
		float32(real(a) - imag(b)), float32(imag(a) + real(b)),
		float32(real(c) - imag(d)), float32(imag(c) + real(d)),
	}
}

func cmplxExp(phase float64) complex128 {
	s, c := math.Sincos(phase)
	return complex(c, s)
}

func conj(z complex128) complex128 { return complex(real(z), -imag(z)) }
