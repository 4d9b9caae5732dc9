package ocean

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/coreman2200/oceanfft/internal/compute"
	"github.com/coreman2200/oceanfft/internal/ocean/post"
	"github.com/coreman2200/oceanfft/internal/spectrum"
	"github.com/coreman2200/oceanfft/internal/texture"
)

// Cascades is the number of bands in a Cascade.
const Cascades = 3

// LengthScales are the per-band grid lengths, meters.
var LengthScales = [Cascades]float64{500, 85, 10}

const (
	bandFloor   = 0.0001
	bandCeiling = 9999
)

// CascadeParameters are the values shared by all three bands.
type CascadeParameters struct {
	Size          int     `yaml:"size" json:"size"`
	WindSpeed     float64 `yaml:"wind_speed" json:"wind_speed"`
	WindDirection float64 `yaml:"wind_direction" json:"wind_direction"`
	Swell         float64 `yaml:"swell" json:"swell"`
}

func DefaultCascadeParameters() CascadeParameters {
	return CascadeParameters{Size: 256, WindSpeed: 10, WindDirection: -20, Swell: 0.4}
}

// Band is a half-open wavenumber range [Low, High).
type Band struct {
	Low, High float64
}

// Boundaries returns the wavenumbers separating the bands: 2π/L·6 of the
// second and third length scales.
func Boundaries() (b1, b2 float64) {
	return 2 * math.Pi / LengthScales[1] * 6, 2 * math.Pi / LengthScales[2] * 6
}

// Bands partitions the wavenumber axis so each band's High is the next
// band's Low.
func Bands() [Cascades]Band {
	b1, b2 := Boundaries()
	return [Cascades]Band{{bandFloor, b1}, {b1, b2}, {b2, bandCeiling}}
}

// BandParameters expands p over base into one parameter set per band.
func BandParameters(p CascadeParameters, base spectrum.Parameters) [Cascades]spectrum.Parameters {
	base.Size = p.Size
	base.WindSpeed = p.WindSpeed
	base.WindDirection = p.WindDirection
	base.Swell = p.Swell

	var out [Cascades]spectrum.Parameters
	for i, b := range Bands() {
		out[i] = base
		out[i].LengthScale = LengthScales[i]
		out[i].CutOffLow = b.Low
		out[i].CutOffHigh = b.High
	}
	return out
}

// Cascade runs three surfaces over disjoint wavenumber bands. Each
// surface's fields stay separate; MergeDisplacement combines them only
// when asked.
type Cascade struct {
	surfaces [Cascades]*Surface
	device   *compute.Device
	base     spectrum.Parameters

	mu     sync.Mutex
	params CascadeParameters

	merged  *post.CascadeMerger
	mergeTo *texture.Arena
	sources [Cascades]*texture.Texture
}

func NewCascade(p CascadeParameters, opts ...Option) (*Cascade, error) {
	o := resolve(opts)
	base := spectrum.DefaultParameters()
	if o.base != nil {
		base = *o.base
	}
	c := &Cascade{device: o.device, base: base, params: p}
	bands := BandParameters(p, base)
	for i := range c.surfaces {
		// each band draws its own noise unless the caller shares a source
		surfOpts := append(append([]Option{}, opts...), WithDevice(o.device), WithSeed(o.seed+uint64(i)))
		s, err := NewSurface(bands[i], surfOpts...)
		if err != nil {
			return nil, fmt.Errorf("cascade %d: %w", i, err)
		}
		c.surfaces[i] = s
	}
	return c, nil
}

func (c *Cascade) Init(ctx context.Context) error {
	for i, s := range c.surfaces {
		if err := s.Init(ctx); err != nil {
			return fmt.Errorf("cascade %d: %w", i, err)
		}
	}
	return nil
}

// Dispatch runs the frame sequence of every band.
func (c *Cascade) Dispatch(ctx context.Context, t float64, dt time.Duration) error {
	for i, s := range c.surfaces {
		if err := s.Dispatch(ctx, t, dt); err != nil {
			return fmt.Errorf("cascade %d: %w", i, err)
		}
	}
	return nil
}

// ChangeParameters validates p for every band before applying any of them.
func (c *Cascade) ChangeParameters(p CascadeParameters) error {
	bands := BandParameters(p, c.base)
	var errs []error
	for i := range bands {
		if err := bands[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("cascade %d: %w", i, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	for i, s := range c.surfaces {
		if err := s.ChangeParameters(bands[i]); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.params = p
	c.mu.Unlock()
	return nil
}

func (c *Cascade) Parameters() CascadeParameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// Surface returns band i, 0 being the longest waves.
func (c *Cascade) Surface(i int) *Surface { return c.surfaces[i] }

func (c *Cascade) Surfaces() []*Surface { return c.surfaces[:] }

// Reset redraws the noise of every band.
func (c *Cascade) Reset() {
	for _, s := range c.surfaces {
		s.Reset()
	}
}

// MergeDisplacement sums the base displacement level of the three bands
// into one field. It is never part of Dispatch; call it after a frame when
// a single combined field is wanted.
func (c *Cascade) MergeDisplacement(ctx context.Context) (*texture.Texture, error) {
	var sources [Cascades]*texture.Texture
	for i, s := range c.surfaces {
		if s.State() == Uninitialized {
			return nil, fmt.Errorf("cascade %d: %w", i, ErrNotReady)
		}
		sources[i] = s.Displacement()
	}
	if c.merged == nil || sources != c.sources {
		size := sources[0].Width
		a := texture.NewArena(0)
		m, err := post.NewCascadeMerger(a, size, sources[:]...)
		if err != nil {
			return nil, err
		}
		c.merged, c.mergeTo, c.sources = m, a, sources
	}

	enc := compute.NewEncoder("merge cascades")
	c.merged.Record(enc)
	if err := c.device.Submit(ctx, enc); err != nil {
		return nil, err
	}
	out, _ := c.mergeTo.Get(post.MergedDisplacement)
	return out, nil
}
