package texture

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// TexelBytes is the storage cost of one Rgba32Float texel.
const TexelBytes = 16

// Name identifies a field buffer inside an Arena.
type Name string

// Ref addresses one mip level of a named texture.
type Ref struct {
	Name  Name
	Level int
}

// At returns a reference to mip level l of name.
func At(name Name, level int) Ref { return Ref{Name: name, Level: level} }

// Base returns a reference to the full resolution level of name.
func Base(name Name) Ref { return Ref{Name: name} }

func (r Ref) String() string { return fmt.Sprintf("%s@%d", r.Name, r.Level) }

// Texture is a 2D grid of Rgba32Float texels with an optional mip chain.
// Level 0 is row-major, Width texels per row.
type Texture struct {
	Name   Name
	Width  int
	Height int
	Levels [][]mgl32.Vec4
}

func newTexture(name Name, w, h, levels int) *Texture {
	t := &Texture{Name: name, Width: w, Height: h, Levels: make([][]mgl32.Vec4, levels)}
	for l := range t.Levels {
		lw, lh := t.Size(l)
		t.Levels[l] = make([]mgl32.Vec4, lw*lh)
	}
	return t
}

// Size returns the dimensions of mip level l.
func (t *Texture) Size(l int) (w, h int) {
	return max(1, t.Width>>l), max(1, t.Height>>l)
}

// MipCount returns the number of mip levels.
func (t *Texture) MipCount() int { return len(t.Levels) }

// Level returns the texels of mip level l.
func (t *Texture) Level(l int) []mgl32.Vec4 { return t.Levels[l] }

// Texel reads the texel at (x, y) of mip level l.
func (t *Texture) Texel(x, y, l int) mgl32.Vec4 {
	w, _ := t.Size(l)
	return t.Levels[l][y*w+x]
}

// Channel copies one component (0..3) of mip level l into dst, growing it as needed.
func (t *Texture) Channel(dst []float64, c, l int) []float64 {
	src := t.Levels[l]
	if cap(dst) < len(src) {
		dst = make([]float64, len(src))
	}
	dst = dst[:len(src)]
	for i, v := range src {
		dst[i] = float64(v[c])
	}
	return dst
}

// Fill sets every texel of every level to v.
func (t *Texture) Fill(v mgl32.Vec4) {
	for _, lvl := range t.Levels {
		for i := range lvl {
			lvl[i] = v
		}
	}
}

// Bytes returns the storage cost of the whole mip chain.
func (t *Texture) Bytes() int64 {
	return footprint(t.Width, t.Height, len(t.Levels))
}

func footprint(w, h, levels int) int64 {
	var n int64
	for l := 0; l < levels; l++ {
		n += int64(max(1, w>>l)) * int64(max(1, h>>l))
	}
	return n * TexelBytes
}
