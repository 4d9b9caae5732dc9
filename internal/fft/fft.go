// Package fft implements the 2D inverse transform of the ocean pipeline:
// radix-2 Cooley–Tukey butterflies driven by a precomputed twiddle table,
// ping-ponging between the input grids and two scratch grids.
//
// Every texel carries two complex values (x+iy, z+iw) and the engine
// transforms two grids per pass, so one dispatch sequence runs four
// transforms. The transform is unnormalized and expects the spectrum
// centred at (N/2, N/2); the final pass re-centres by (-1)^(x+y).
package fft

import (
	"fmt"
	"math/bits"

	"github.com/coreman2200/oceanfft/internal/compute"
	"github.com/coreman2200/oceanfft/internal/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// Field names owned by the engine.
const (
	Precomputed texture.Name = "fft_precompute"
	ScratchA    texture.Name = "fft_scratch_a"
	ScratchB    texture.Name = "fft_scratch_b"
)

// Step selects the butterfly stage and which buffer pair is the source.
// It is captured by value in each pass.
type Step struct {
	PingPong int
	Stage    int
}

type Engine struct {
	size   int
	stages int

	in      [2]texture.Ref
	scratch [2]texture.Ref

	table   *texture.Binding
	passes  [2]*texture.Binding // indexed by ping-pong parity
	swap    *texture.Binding
	permute *texture.Binding
}

// New allocates the twiddle table and scratch grids in a and binds the
// engine to the existing inputA and inputB grids, which receive the result.
func New(a *texture.Arena, size int, inputA, inputB texture.Name) (*Engine, error) {
	if size < 2 || size&(size-1) != 0 {
		return nil, fmt.Errorf("fft size %d is not a power of two", size)
	}
	e := &Engine{
		size:    size,
		stages:  bits.TrailingZeros(uint(size)),
		in:      [2]texture.Ref{texture.Base(inputA), texture.Base(inputB)},
		scratch: [2]texture.Ref{texture.Base(ScratchA), texture.Base(ScratchB)},
	}
	if _, err := a.Create(Precomputed, e.stages, size, 1); err != nil {
		return nil, err
	}
	for _, n := range []texture.Name{ScratchA, ScratchB} {
		if _, err := a.Create(n, size, size, 1); err != nil {
			return nil, err
		}
	}

	var err error
	table := texture.Base(Precomputed)
	if e.table, err = a.Bind("fft precompute", texture.Access{Writes: []texture.Ref{table}}); err != nil {
		return nil, err
	}
	if e.passes[0], err = a.Bind("fft butterfly 0", texture.Access{
		Reads:  []texture.Ref{table, e.in[0], e.in[1]},
		Writes: e.scratch[:],
	}); err != nil {
		return nil, err
	}
	if e.passes[1], err = a.Bind("fft butterfly 1", texture.Access{
		Reads:  []texture.Ref{table, e.scratch[0], e.scratch[1]},
		Writes: e.in[:],
	}); err != nil {
		return nil, err
	}
	if e.swap, err = a.Bind("fft swap", texture.Access{
		Reads:  e.scratch[:],
		Writes: e.in[:],
	}); err != nil {
		return nil, err
	}
	if e.permute, err = a.Bind("fft permute", texture.Access{InPlace: e.in[:]}); err != nil {
		return nil, err
	}
	return e, nil
}

// Size returns the grid edge length.
func (e *Engine) Size() int { return e.size }

// Stages returns log2 of the grid size.
func (e *Engine) Stages() int { return e.stages }

// Inverse records the full transform of both input grids. The result is
// left in the input grids.
func (e *Engine) Inverse(enc *compute.Encoder) {
	pingPong := 0
	for s := 0; s < e.stages; s++ {
		enc.Dispatch(fmt.Sprintf("fft: horizontal %d", s), e.size, e.size, e.butterfly(Step{pingPong, s}, true))
		pingPong ^= 1
	}
	for s := 0; s < e.stages; s++ {
		enc.Dispatch(fmt.Sprintf("fft: vertical %d", s), e.size, e.size, e.butterfly(Step{pingPong, s}, false))
		pingPong ^= 1
	}
	// 2·log2 N passes always end back in the inputs; kept for odd stage counts.
	if pingPong == 1 {
		enc.Dispatch("fft: swap", e.size, e.size, e.copyBack())
	}
	enc.Dispatch("fft: permute", e.size, e.size, e.recentre())
}

func (e *Engine) butterfly(st Step, horizontal bool) compute.Kernel {
	b := e.passes[st.PingPong]
	src, dst := e.in, e.scratch
	if st.PingPong == 1 {
		src, dst = e.scratch, e.in
	}
	table := b.Read(texture.Base(Precomputed))
	inA, inB := b.Read(src[0]), b.Read(src[1])
	outA, outB := b.Write(dst[0]), b.Write(dst[1])
	n, stages, s := e.size, e.stages, st.Stage

	return func(x, y int) {
		var tw mgl32.Vec4
		var top, bottom int
		if horizontal {
			tw = table[x*stages+s]
			top, bottom = y*n+int(tw[2]), y*n+int(tw[3])
		} else {
			tw = table[y*stages+s]
			top, bottom = int(tw[2])*n+x, int(tw[3])*n+x
		}
		i := y*n + x
		outA[i] = combine(inA[top], inA[bottom], tw[0], tw[1])
		outB[i] = combine(inB[top], inB[bottom], tw[0], tw[1])
	}
}

// combine returns p + w·q for both complex channels of a texel.
func combine(p, q mgl32.Vec4, wr, wi float32) mgl32.Vec4 {
	return mgl32.Vec4{
		p[0] + wr*q[0] - wi*q[1],
		p[1] + wr*q[1] + wi*q[0],
		p[2] + wr*q[2] - wi*q[3],
		p[3] + wr*q[3] + wi*q[2],
	}
}

func (e *Engine) copyBack() compute.Kernel {
	srcA, srcB := e.swap.Read(e.scratch[0]), e.swap.Read(e.scratch[1])
	dstA, dstB := e.swap.Write(e.in[0]), e.swap.Write(e.in[1])
	n := e.size
	return func(x, y int) {
		i := y*n + x
		dstA[i] = srcA[i]
		dstB[i] = srcB[i]
	}
}

func (e *Engine) recentre() compute.Kernel {
	a, b := e.permute.Write(e.in[0]), e.permute.Write(e.in[1])
	n := e.size
	return func(x, y int) {
		if (x+y)&1 == 0 {
			return
		}
		i := y*n + x
		a[i] = a[i].Mul(-1)
		b[i] = b[i].Mul(-1)
	}
}
