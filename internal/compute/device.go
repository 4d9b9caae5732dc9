// Package compute is the data-parallel substrate the ocean stages run on.
// Stages record passes into an Encoder; a Device executes them strictly in
// record order, fanning each pass out over worker goroutines by row band.
package compute

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// inlineTexels is the grid size below which a pass runs on the calling
// goroutine.
const inlineTexels = 1024

// Kernel is one work-item of a pass.
type Kernel func(x, y int)

// Pass is a recorded dispatch over a Width×Height grid.
type Pass struct {
	Label  string
	Width  int
	Height int
	Kernel Kernel
}

// Encoder records passes. Nothing runs until a Device submits it.
type Encoder struct {
	Label  string
	passes []Pass
}

func NewEncoder(label string) *Encoder { return &Encoder{Label: label} }

// Dispatch appends a pass. Parameters a kernel depends on must be captured
// by value when the kernel is built, not read from shared state.
func (e *Encoder) Dispatch(label string, w, h int, k Kernel) {
	e.passes = append(e.passes, Pass{Label: label, Width: w, Height: h, Kernel: k})
}

// Len returns the number of recorded passes.
func (e *Encoder) Len() int { return len(e.passes) }

// Labels lists the recorded pass labels in order.
func (e *Encoder) Labels() []string {
	out := make([]string, len(e.passes))
	for i, p := range e.passes {
		out[i] = p.Label
	}
	return out
}

// Stats describes the last submission.
type Stats struct {
	Label   string
	Passes  int
	Elapsed time.Duration
}

// Device executes encoders on a bounded set of goroutines.
type Device struct {
	workers int
	last    Stats
}

// NewDevice returns a device using workers goroutines per pass, or
// GOMAXPROCS when workers <= 0.
func NewDevice(workers int) *Device {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Device{workers: workers}
}

// Workers returns the per-pass goroutine limit.
func (d *Device) Workers() int { return d.workers }

// Last returns the stats of the most recent Submit.
func (d *Device) Last() Stats { return d.last }

// Submit runs every pass of enc in order. A pass completes entirely before
// the next one starts. The context is only consulted before the first pass:
// a submission is never abandoned half way.
func (d *Device) Submit(ctx context.Context, enc *Encoder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	for _, p := range enc.passes {
		if err := d.run(p); err != nil {
			return fmt.Errorf("%s: %w", enc.Label, err)
		}
	}
	d.last = Stats{Label: enc.Label, Passes: len(enc.passes), Elapsed: time.Since(start)}
	return nil
}

func (d *Device) run(p Pass) error {
	if p.Width <= 0 || p.Height <= 0 {
		return nil
	}
	if d.workers == 1 || p.Width*p.Height <= inlineTexels {
		return runBand(p, 0, p.Height)
	}

	bands := min(d.workers, p.Height)
	rows := (p.Height + bands - 1) / bands

	var g errgroup.Group
	g.SetLimit(d.workers)
	for y0 := 0; y0 < p.Height; y0 += rows {
		y0, y1 := y0, min(y0+rows, p.Height)
		g.Go(func() error { return runBand(p, y0, y1) })
	}
	return g.Wait()
}

func runBand(p Pass, y0, y1 int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pass %q rows [%d,%d): %v", p.Label, y0, y1, r)
		}
	}()
	for y := y0; y < y1; y++ {
		for x := 0; x < p.Width; x++ {
			p.Kernel(x, y)
		}
	}
	return nil
}
