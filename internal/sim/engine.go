// Package sim drives a cascade on a clock: it owns simulation time,
// applies weather automation between frames and publishes finished frames.
package sim

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	diag "github.com/coreman2200/oceanfft/internal/diagnostics"
	"github.com/coreman2200/oceanfft/internal/ocean"
	"github.com/coreman2200/oceanfft/internal/weather"
)

// DefaultEpsilon is the smallest weather move that triggers a regeneration.
const DefaultEpsilon = 1e-3

// Frame is handed to OnFrame after every successful step. The cascade's
// fields stay valid until the next step begins.
type Frame struct {
	ID      uint64
	T       float64
	DT      time.Duration
	Cascade *ocean.Cascade
}

// Engine steps one cascade. Step and Run belong to one goroutine; the
// cascade's ChangeParameters may still be called from anywhere.
type Engine struct {
	Cascade *ocean.Cascade

	OnFrame func(Frame)
	OnDiag  func(diag.Diagnostic)

	// Epsilon is the per-parameter change below which weather output is ignored.
	Epsilon float64
	// TimeScale multiplies wall time in Now.
	TimeScale float64

	player  *weather.SafePlayer
	// values the program emitted since the last frame, by parameter name
	emitted map[string]float64
	gens    [ocean.Cascades]int

	t0       time.Time
	inited   bool
	frameID  uint64
	resetReq atomic.Bool

	Last Metrics
}

// Metrics holds the durations of the last step in ms.
type Metrics struct {
	DispatchMS float64                 `json:"dispatch_ms"`
	CascadeMS  [ocean.Cascades]float64 `json:"cascade_ms"`
	Passes     int                     `json:"passes"`
	TotalMS    float64                 `json:"total_ms"`
}

func NewEngine(c *ocean.Cascade) *Engine {
	return &Engine{
		Cascade:   c,
		Epsilon:   DefaultEpsilon,
		TimeScale: 1,
		t0:        time.Now(),
	}
}

// Now returns scaled seconds since the engine was created.
func (e *Engine) Now() float64 {
	return time.Since(e.t0).Seconds() * e.TimeScale
}

// FrameID returns the id of the last published frame.
func (e *Engine) FrameID() uint64 { return e.frameID }

// LoadWeather replaces the weather program and starts it.
func (e *Engine) LoadWeather(prog weather.Program) error {
	sp := weather.NewSafePlayer(weather.Hooks{
		SetParam: e.setWeather,
		OnSegment: func(name string) {
			log.Info().Str("segment", name).Msg("weather segment")
			e.emit(diag.Diagnostic{Severity: diag.Info, Code: diag.CodeWeatherSegment, Summary: "weather segment " + name})
		},
	})
	var err error
	sp.With(func(p *weather.Player) {
		if err = p.Load(prog); err == nil {
			e.emitted = map[string]float64{}
			p.Start()
		}
	})
	if err != nil {
		return err
	}
	e.player = sp
	return nil
}

// RequestReset asks for fresh noise and turbulence at the next step. Safe
// from any goroutine.
func (e *Engine) RequestReset() { e.resetReq.Store(true) }

// Weather exposes the player for pause, resume and seek.
func (e *Engine) Weather() *weather.SafePlayer { return e.player }

func (e *Engine) setWeather(name string, v float64) { e.emitted[name] = v }

// Step runs one frame at simulation time t after dt. The cascade is
// initialized lazily on the first step.
func (e *Engine) Step(ctx context.Context, t float64, dt time.Duration) error {
	start := time.Now()
	if !e.inited {
		if err := e.Cascade.Init(ctx); err != nil {
			return err
		}
		e.inited = true
		log.Info().Int("size", e.Cascade.Parameters().Size).Msg("cascade initialized")
	}

	if e.resetReq.Swap(false) {
		e.Cascade.Reset()
		log.Info().Msg("cascade reset")
	}
	e.applyWeather(dt)

	dispatchStart := time.Now()
	if err := e.Cascade.Dispatch(ctx, t, dt); err != nil {
		e.emit(diag.DispatchFailed(err))
		return err
	}
	e.Last.DispatchMS = ms(time.Since(dispatchStart))

	e.Last.Passes = 0
	for i, s := range e.Cascade.Surfaces() {
		st := s.LastDispatch()
		e.Last.CascadeMS[i] = ms(st.Elapsed)
		e.Last.Passes += st.Passes
		if g := s.Generations(); g != e.gens[i] {
			if e.gens[i] > 0 {
				e.emit(diag.Regenerated(i, g, s.Parameters().WindSpeed))
			}
			e.gens[i] = g
		}
		if h := ocean.HeightStats(s.Displacement(), 0); !h.Finite() {
			log.Warn().Int("cascade", i).Int("non_finite", h.NonFinite).Msg("non-finite displacement")
			e.emit(diag.NonFinite(i, "displacement", h.NonFinite))
		}
	}

	e.frameID++
	e.Last.TotalMS = ms(time.Since(start))
	if e.OnFrame != nil {
		e.OnFrame(Frame{ID: e.frameID, T: t, DT: dt, Cascade: e.Cascade})
	}
	return nil
}

// applyWeather advances the program and forwards its output as at most one
// parameter change per frame.
func (e *Engine) applyWeather(dt time.Duration) {
	if e.player == nil {
		return
	}
	e.player.With(func(p *weather.Player) { p.Tick(dt.Seconds()) })
	if len(e.emitted) == 0 {
		return
	}

	// only the automated values move; the rest keep whatever control set
	cur := e.Cascade.Parameters()
	next := cur
	for name, v := range e.emitted {
		switch name {
		case weather.WindSpeed:
			next.WindSpeed = v
		case weather.WindDirection:
			next.WindDirection = v
		case weather.Swell:
			next.Swell = v
		}
	}
	clear(e.emitted)
	if !e.differs(cur, next) {
		return
	}
	if err := e.Cascade.ChangeParameters(next); err != nil {
		log.Warn().Err(err).Msg("weather change rejected")
		e.emit(diag.ConfigRejected("weather", err))
		return
	}
	log.Debug().Float64("wind_speed", next.WindSpeed).Float64("wind_direction", next.WindDirection).
		Float64("swell", next.Swell).Msg("weather applied")
}

func (e *Engine) differs(a, b ocean.CascadeParameters) bool {
	return math.Abs(a.WindSpeed-b.WindSpeed) > e.Epsilon ||
		math.Abs(a.WindDirection-b.WindDirection) > e.Epsilon ||
		math.Abs(a.Swell-b.Swell) > e.Epsilon
}

// Run steps at fps until ctx is cancelled. Step errors are logged and the
// loop carries on with the next tick.
func (e *Engine) Run(ctx context.Context, fps int) error {
	ticker := time.NewTicker(time.Second / time.Duration(max(1, fps)))
	defer ticker.Stop()
	last := e.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		now := e.Now()
		dt := time.Duration((now - last) * float64(time.Second))
		last = now
		if err := e.Step(ctx, now, dt); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("step failed")
		}
	}
}

func (e *Engine) emit(d diag.Diagnostic) {
	if e.OnDiag != nil {
		e.OnDiag(d)
	}
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000.0 }
