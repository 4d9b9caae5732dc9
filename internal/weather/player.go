package weather

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

var (
	ErrEmptyProgram = errors.New("program has no segments")
	ErrUnknownParam = errors.New("unknown weather parameter")
)

// Validate checks durations, parameter names and key order.
func (p Program) Validate() error {
	if len(p.Segments) == 0 {
		return ErrEmptyProgram
	}
	var errs []error
	for i, s := range p.Segments {
		if !(s.DurationS > 0) {
			errs = append(errs, fmt.Errorf("segment %d %q: duration %g must be positive", i, s.Name, s.DurationS))
		}
		for name, env := range s.Params {
			switch name {
			case WindSpeed, WindDirection, Swell:
			default:
				errs = append(errs, fmt.Errorf("segment %d %q: %s: %w", i, s.Name, name, ErrUnknownParam))
			}
			if !sort.SliceIsSorted(env.Keys, func(a, b int) bool { return env.Keys[a].T < env.Keys[b].T }) {
				errs = append(errs, fmt.Errorf("segment %d %q: %s keys are not sorted by t", i, s.Name, name))
			}
		}
	}
	return errors.Join(errs...)
}

// Duration is the length of one pass through the program.
func (p Program) Duration() float64 {
	total := 0.0
	for _, s := range p.Segments {
		total += s.DurationS
	}
	return total
}

func NewPlayer(h Hooks) *Player {
	return &Player{State: Idle, hooks: h}
}

// Load replaces the program and rewinds to Idle.
func (p *Player) Load(prog Program) error {
	if err := prog.Validate(); err != nil {
		return err
	}
	p.prog = prog
	p.nowS = 0
	p.idx = 0
	p.State = Idle
	return nil
}

// Start moves to Running and emits the first segment's values.
func (p *Player) Start() {
	if p.State == Running || len(p.prog.Segments) == 0 {
		return
	}
	p.State = Running
	p.enter()
	p.emit()
}

func (p *Player) Pause() { p.State = Paused }

func (p *Player) Resume() {
	if p.State == Paused {
		p.State = Running
	}
}

// Stop rewinds to the start.
func (p *Player) Stop() {
	p.State = Idle
	p.nowS = 0
	p.idx = 0
}

// Position returns the program time and the active segment name.
func (p *Player) Position() (float64, string) {
	if len(p.prog.Segments) == 0 {
		return 0, ""
	}
	return p.nowS, p.prog.Segments[p.idx].Name
}

// Seek jumps to absolute program time t, clamped into [0, duration).
func (p *Player) Seek(t float64) {
	if len(p.prog.Segments) == 0 {
		return
	}
	total := p.prog.Duration()
	t = math.Max(t, 0)
	if t >= total {
		t = math.Nextafter(total, -1)
	}
	acc := 0.0
	for i, s := range p.prog.Segments {
		if t < acc+s.DurationS {
			p.idx = i
			break
		}
		acc += s.DurationS
	}
	p.nowS = t
	p.enter()
	if p.State == Running {
		p.emit()
	}
}

// Tick advances by dt seconds and emits the automated values.
func (p *Player) Tick(dt float64) {
	if p.State != Running || len(p.prog.Segments) == 0 || dt <= 0 {
		return
	}
	p.nowS += dt
	for {
		seg, localT := p.current()
		if localT < seg.DurationS {
			break
		}
		if !p.advance() {
			return
		}
	}
	p.emit()
}

func (p *Player) emit() {
	seg, localT := p.current()
	if p.hooks.SetParam == nil {
		return
	}
	// fixed order so hooks see a stable sequence
	for _, name := range []string{WindSpeed, WindDirection, Swell} {
		if env, ok := seg.Params[name]; ok {
			p.hooks.SetParam(name, env.Eval(localT))
		}
	}
}

func (p *Player) enter() {
	if p.hooks.OnSegment != nil {
		p.hooks.OnSegment(p.prog.Segments[p.idx].Name)
	}
}

func (p *Player) current() (Segment, float64) {
	acc := 0.0
	for i := 0; i < p.idx; i++ {
		acc += p.prog.Segments[i].DurationS
	}
	return p.prog.Segments[p.idx], p.nowS - acc
}

// advance moves to the next segment. At the end of a looped program the
// clock wraps; otherwise the player holds the final values and goes Idle.
func (p *Player) advance() bool {
	if p.idx+1 < len(p.prog.Segments) {
		p.idx++
		p.enter()
		return true
	}
	if !p.prog.Loop {
		p.nowS = p.prog.Duration()
		p.emit()
		p.State = Idle
		return false
	}
	p.nowS -= p.prog.Duration()
	p.idx = 0
	p.enter()
	return true
}

// SafePlayer serialises access to a Player shared with control handlers.
type SafePlayer struct {
	mu sync.Mutex
	P  *Player
}

func NewSafePlayer(h Hooks) *SafePlayer {
	return &SafePlayer{P: NewPlayer(h)}
}

func (s *SafePlayer) With(f func(p *Player)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s.P)
}
