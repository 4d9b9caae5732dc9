package post

import (
	"fmt"

	"github.com/coreman2200/oceanfft/internal/compute"
	"github.com/coreman2200/oceanfft/internal/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// Mipmapper fills levels 1..MipLevels-1 of the displacement and
// derivative fields, each from the level above by 2×2 box average.
type Mipmapper struct {
	levels []*texture.Binding
}

func NewMipmapper(a *texture.Arena) (*Mipmapper, error) {
	m := &Mipmapper{}
	for l := 1; l < MipLevels; l++ {
		b, err := a.Bind(fmt.Sprintf("mipmap %d", l), texture.Access{
			Reads:  []texture.Ref{texture.At(Displacement, l-1), texture.At(Derivatives, l-1)},
			Writes: []texture.Ref{texture.At(Displacement, l), texture.At(Derivatives, l)},
		})
		if err != nil {
			return nil, err
		}
		m.levels = append(m.levels, b)
	}
	return m, nil
}

// Record appends one pass per level; each pass reads what the previous wrote.
func (m *Mipmapper) Record(enc *compute.Encoder) {
	for i, b := range m.levels {
		l := i + 1
		srcDisp, srcDeriv := texture.At(Displacement, l-1), texture.At(Derivatives, l-1)
		sw, sh := b.Dims(srcDisp)
		w, h := b.Dims(texture.At(Displacement, l))
		disp, deriv := b.Read(srcDisp), b.Read(srcDeriv)
		outDisp := b.Write(texture.At(Displacement, l))
		outDeriv := b.Write(texture.At(Derivatives, l))

		enc.Dispatch(fmt.Sprintf("mipmap %d", l), w, h, func(x, y int) {
			outDisp[y*w+x] = downsample(disp, sw, sh, x, y)
			outDeriv[y*w+x] = downsample(deriv, sw, sh, x, y)
		})
	}
}

func downsample(src []mgl32.Vec4, w, h, x, y int) mgl32.Vec4 {
	x0, y0 := min(2*x, w-1), min(2*y, h-1)
	x1, y1 := min(2*x+1, w-1), min(2*y+1, h-1)
	return src[y0*w+x0].Add(src[y0*w+x1]).Add(src[y1*w+x0]).Add(src[y1*w+x1]).Mul(0.25)
}
