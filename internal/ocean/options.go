package ocean

import (
	"github.com/coreman2200/oceanfft/internal/compute"
	"github.com/coreman2200/oceanfft/internal/ocean/post"
	"github.com/coreman2200/oceanfft/internal/spectrum"
)

type options struct {
	device *compute.Device
	noise  spectrum.NoiseSource
	seed   uint64
	budget int64
	lambda float64
	base   *spectrum.Parameters
}

// Option configures a Surface or Cascade.
type Option func(*options)

// WithDevice shares one compute device between surfaces.
func WithDevice(d *compute.Device) Option { return func(o *options) { o.device = d } }

// WithNoise replaces the seeded noise source.
func WithNoise(n spectrum.NoiseSource) Option { return func(o *options) { o.noise = n } }

// WithSeed seeds the default noise source.
func WithSeed(seed uint64) Option { return func(o *options) { o.seed = seed } }

// WithMemoryBudget caps the bytes of field storage per surface.
func WithMemoryBudget(bytes int64) Option { return func(o *options) { o.budget = bytes } }

// WithLambda sets the horizontal displacement factor.
func WithLambda(l float64) Option { return func(o *options) { o.lambda = l } }

// WithBaseParameters sets the spectrum values a Cascade does not override
// per band.
func WithBaseParameters(p spectrum.Parameters) Option {
	return func(o *options) { o.base = &p }
}

func resolve(opts []Option) options {
	o := options{lambda: post.DefaultLambda}
	for _, fn := range opts {
		fn(&o)
	}
	if o.device == nil {
		o.device = compute.NewDevice(0)
	}
	if o.noise == nil {
		o.noise = spectrum.NewSeededNoise(o.seed)
	}
	return o
}
