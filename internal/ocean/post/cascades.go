package post

import (
	"errors"
	"fmt"

	"github.com/coreman2200/oceanfft/internal/compute"
	"github.com/coreman2200/oceanfft/internal/texture"
	"github.com/go-gl/mathgl/mgl32"
)

const MergedDisplacement texture.Name = "merged_displacement"

var ErrSizeMismatch = errors.New("cascade fields differ in size")

// CascadeMerger sums the base displacement level of several surfaces into
// one field owned by its own arena. The sources belong to other arenas and
// are only ever read.
type CascadeMerger struct {
	size    int
	sources [][]mgl32.Vec4
	out     *texture.Binding
}

func NewCascadeMerger(a *texture.Arena, size int, sources ...*texture.Texture) (*CascadeMerger, error) {
	m := &CascadeMerger{size: size}
	for _, s := range sources {
		if s.Width != size || s.Height != size {
			return nil, fmt.Errorf("%s is %dx%d, want %dx%d: %w", s.Name, s.Width, s.Height, size, size, ErrSizeMismatch)
		}
		m.sources = append(m.sources, s.Level(0))
	}
	if _, err := a.Create(MergedDisplacement, size, size, 1); err != nil {
		return nil, err
	}
	var err error
	if m.out, err = a.Bind("merge cascades", texture.Access{
		Writes: []texture.Ref{texture.Base(MergedDisplacement)},
	}); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *CascadeMerger) Record(enc *compute.Encoder) {
	out := m.out.Write(texture.Base(MergedDisplacement))
	sources := m.sources
	n := m.size
	enc.Dispatch("merge cascades", n, n, func(x, y int) {
		i := y*n + x
		var sum mgl32.Vec4
		for _, s := range sources {
			sum = sum.Add(s[i])
		}
		sum[3] = 0
		out[i] = sum
	})
}
