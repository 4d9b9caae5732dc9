// Package ocean orchestrates the spectral pipeline: a Surface runs one
// band per frame, a Cascade runs three bands at different length scales.
package ocean

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coreman2200/oceanfft/internal/compute"
	"github.com/coreman2200/oceanfft/internal/fft"
	"github.com/coreman2200/oceanfft/internal/ocean/post"
	"github.com/coreman2200/oceanfft/internal/spectrum"
	"github.com/coreman2200/oceanfft/internal/texture"
	"github.com/rs/zerolog/log"
)

var ErrNotReady = errors.New("surface is not initialized")

// pipeline is every stage of one surface bound to one arena.
type pipeline struct {
	size   int
	arena  *texture.Arena
	gen    *spectrum.Generator
	evo    *spectrum.Evolver
	fft    *fft.Engine
	merger *post.Merger
	mips   *post.Mipmapper
}

func newPipeline(size int, budget int64) (*pipeline, error) {
	a := texture.NewArena(budget)
	p := &pipeline{size: size, arena: a}
	var err error
	if p.gen, err = spectrum.NewGenerator(a, size); err != nil {
		return nil, err
	}
	if p.evo, err = spectrum.NewEvolver(a, size); err != nil {
		return nil, err
	}
	if p.fft, err = fft.New(a, size, spectrum.AmpDxDz, spectrum.AmpDyxDyz); err != nil {
		return nil, err
	}
	if p.merger, err = post.NewMerger(a, size); err != nil {
		return nil, err
	}
	if p.mips, err = post.NewMipmapper(a); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *pipeline) texture(n texture.Name) *texture.Texture {
	t, _ := p.arena.Get(n)
	return t
}

// Surface owns the fields of one wavenumber band and runs its per-frame
// sequence: optional regeneration, time evolution, inverse FFT, merge,
// mipmaps.
//
// Only ChangeParameters may be called from other goroutines. Everything
// else belongs to the goroutine that dispatches frames.
type Surface struct {
	opts options
	pipe *pipeline

	mu      sync.Mutex
	state   State
	params  spectrum.Parameters
	pending *spectrum.Parameters

	generations int
	last        compute.Stats
}

// NewSurface validates params and allocates every field. Allocation
// failures, including an exceeded memory budget, are returned.
func NewSurface(params spectrum.Parameters, opts ...Option) (*Surface, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	s := &Surface{opts: resolve(opts), params: params}
	pipe, err := newPipeline(params.Size, s.opts.budget)
	if err != nil {
		return nil, fmt.Errorf("allocate %d surface: %w", params.Size, err)
	}
	s.pipe = pipe
	s.pipe.gen.Seed(s.opts.noise)
	return s, nil
}

// Init precomputes the twiddle table and generates the initial spectrum.
func (s *Surface) Init(ctx context.Context) error {
	s.mu.Lock()
	p := s.params
	s.pending = nil
	s.mu.Unlock()

	enc := compute.NewEncoder("surface init")
	s.pipe.fft.Precompute(enc)
	s.pipe.gen.Record(enc, p)
	if err := s.opts.device.Submit(ctx, enc); err != nil {
		return err
	}
	s.generations++

	s.mu.Lock()
	s.state = Ready
	if s.pending != nil {
		s.state = PendingRegeneration
	}
	s.mu.Unlock()
	log.Debug().Int("size", p.Size).Float64("length_scale", p.LengthScale).Msg("surface initialized")
	return nil
}

// ChangeParameters replaces the active parameters. Regeneration happens at
// the start of the next Dispatch; the call never blocks on a frame.
func (s *Surface) ChangeParameters(p spectrum.Parameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Uninitialized:
		s.params = p
	case Ready:
		s.pending = &p
		s.state = PendingRegeneration
	default:
		s.pending = &p
	}
	return nil
}

// Dispatch computes the fields for simulation time t (seconds) after dt of
// wall time. A pending parameter change is applied first, so no frame ever
// uses a stale spectrum.
func (s *Surface) Dispatch(ctx context.Context, t float64, dt time.Duration) error {
	s.mu.Lock()
	if s.state == Uninitialized {
		s.mu.Unlock()
		return ErrNotReady
	}
	var regen *spectrum.Parameters
	if s.pending != nil {
		regen, s.pending = s.pending, nil
	}
	prev := s.params
	if regen != nil {
		s.params = *regen
	}
	s.state = Dispatching
	s.mu.Unlock()

	err := s.dispatch(ctx, t, dt, regen)
	s.settle(err, prev, regen)
	return err
}

// settle leaves Dispatching. A failed frame puts back the change it was
// meant to apply unless a newer one arrived meanwhile.
func (s *Surface) settle(err error, prev spectrum.Parameters, regen *spectrum.Parameters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil && regen != nil {
		s.params = prev
		if s.pending == nil {
			s.pending = regen
		}
	}
	s.state = Ready
	if s.pending != nil {
		s.state = PendingRegeneration
	}
}

func (s *Surface) dispatch(ctx context.Context, t float64, dt time.Duration, regen *spectrum.Parameters) error {
	enc := compute.NewEncoder("surface frame")
	pipe := s.pipe
	if regen != nil {
		if regen.Size != pipe.size {
			next, err := newPipeline(regen.Size, s.opts.budget)
			if err != nil {
				return fmt.Errorf("resize surface to %d: %w", regen.Size, err)
			}
			next.gen.Seed(s.opts.noise)
			next.fft.Precompute(enc)
			pipe = next
		}
		pipe.gen.Record(enc, *regen)
	}
	pipe.evo.Record(enc, t+spectrum.TimeOffset)
	pipe.fft.Inverse(enc)
	pipe.merger.Record(enc, post.MergeParams{Lambda: s.opts.lambda, DeltaTime: dt.Seconds()})
	pipe.mips.Record(enc)

	if err := s.opts.device.Submit(ctx, enc); err != nil {
		return err
	}
	if pipe != s.pipe {
		log.Debug().Int("from", s.pipe.size).Int("to", pipe.size).Msg("surface resized")
		s.pipe = pipe
	}
	if regen != nil {
		s.generations++
		log.Debug().
			Float64("wind_speed", regen.WindSpeed).
			Float64("wind_direction", regen.WindDirection).
			Float64("swell", regen.Swell).
			Int("generation", s.generations).
			Msg("spectrum regenerated")
	}
	s.last = s.opts.device.Last()
	return nil
}

// Reset draws fresh noise, forgets the turbulence history and schedules a
// regeneration with the current parameters.
func (s *Surface) Reset() {
	s.pipe.gen.Seed(s.opts.noise)
	s.pipe.merger.Reset()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		p := s.params
		s.pending = &p
	}
	if s.state == Ready {
		s.state = PendingRegeneration
	}
}

func (s *Surface) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Parameters returns the parameters the current fields were built from,
// or will be built from at Init.
func (s *Surface) Parameters() spectrum.Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Size returns the edge length of the allocated fields.
func (s *Surface) Size() int { return s.pipe.size }

// Displacement is (λ·Dx, Dy, λ·Dz, 0) with MipLevels levels.
func (s *Surface) Displacement() *texture.Texture { return s.pipe.texture(post.Displacement) }

// Derivatives is (slope x, slope z, jacobian, turbulence) with MipLevels levels.
func (s *Surface) Derivatives() *texture.Texture { return s.pipe.texture(post.Derivatives) }

// Spectrum returns the h0 field.
func (s *Surface) Spectrum() *texture.Texture { return s.pipe.texture(spectrum.H0) }

// Generations counts spectrum generations, Init included.
func (s *Surface) Generations() int { return s.generations }

// LastDispatch reports the timing of the last successful frame.
func (s *Surface) LastDispatch() compute.Stats { return s.last }

// MemoryUsed reports the bytes held by the surface's fields.
func (s *Surface) MemoryUsed() int64 { return s.pipe.arena.Used() }
