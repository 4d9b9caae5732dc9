package texture

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rs/zerolog/log"
)

var (
	ErrBudgetExceeded = errors.New("texture memory budget exceeded")
	ErrDuplicate      = errors.New("texture already exists")
	ErrInvalidSize    = errors.New("invalid texture size")
	ErrUnknown        = errors.New("unknown texture")
	ErrAliased        = errors.New("texture bound for both read and write")
	ErrDoubleWrite    = errors.New("texture written twice by one stage")
)

// Arena owns the field buffers of one surface. Textures never move once
// created, so slices handed out through a Binding stay valid for the
// arena's lifetime.
type Arena struct {
	budget   int64
	used     int64
	textures map[Name]*Texture
}

// NewArena returns an arena that refuses allocations past budget bytes.
// A budget <= 0 means unlimited.
func NewArena(budget int64) *Arena {
	return &Arena{budget: budget, textures: map[Name]*Texture{}}
}

// Create allocates a w×h texture with the given number of mip levels.
func (a *Arena) Create(name Name, w, h, levels int) (*Texture, error) {
	if w <= 0 || h <= 0 || levels <= 0 {
		return nil, fmt.Errorf("%s %dx%d (%d levels): %w", name, w, h, levels, ErrInvalidSize)
	}
	if _, ok := a.textures[name]; ok {
		return nil, fmt.Errorf("%s: %w", name, ErrDuplicate)
	}
	need := footprint(w, h, levels)
	if a.budget > 0 && a.used+need > a.budget {
		return nil, fmt.Errorf("%s needs %d bytes, %d of %d in use: %w", name, need, a.used, a.budget, ErrBudgetExceeded)
	}
	t := newTexture(name, w, h, levels)
	a.textures[name] = t
	a.used += need
	log.Debug().Str("texture", string(name)).Int("w", w).Int("h", h).Int("levels", levels).Int64("bytes", need).Msg("texture allocated")
	return t, nil
}

// Get returns the texture registered under name.
func (a *Arena) Get(name Name) (*Texture, bool) {
	t, ok := a.textures[name]
	return t, ok
}

// Used reports the bytes allocated so far.
func (a *Arena) Used() int64 { return a.used }

// Names lists the textures in the arena, sorted.
func (a *Arena) Names() []Name {
	out := make([]Name, 0, len(a.textures))
	for n := range a.textures {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Access declares what a stage touches. Reads are read-only, Writes are
// write-only targets and InPlace refs are read and written at the same
// texel offset by the same work-item.
type Access struct {
	Reads   []Ref
	Writes  []Ref
	InPlace []Ref
}

// Binding is the validated view a stage gets on the arena.
type Binding struct {
	Stage string
	views map[Ref]view
}

type view struct {
	data     []mgl32.Vec4
	w, h     int
	writable bool
}

// Bind checks acc against the arena and returns the stage's view.
// A ref may appear once across Writes and InPlace, and never in both
// Reads and a write set.
func (a *Arena) Bind(stage string, acc Access) (*Binding, error) {
	b := &Binding{Stage: stage, views: map[Ref]view{}}
	add := func(r Ref, writable bool) error {
		t, ok := a.textures[r.Name]
		if !ok || r.Level < 0 || r.Level >= len(t.Levels) {
			return fmt.Errorf("stage %q: %s: %w", stage, r, ErrUnknown)
		}
		if prev, seen := b.views[r]; seen {
			if !prev.writable && !writable {
				return nil
			}
			if prev.writable && writable {
				return fmt.Errorf("stage %q: %s: %w", stage, r, ErrDoubleWrite)
			}
			return fmt.Errorf("stage %q: %s: %w", stage, r, ErrAliased)
		}
		w, h := t.Size(r.Level)
		b.views[r] = view{data: t.Levels[r.Level], w: w, h: h, writable: writable}
		return nil
	}
	for _, r := range acc.Writes {
		if err := add(r, true); err != nil {
			return nil, err
		}
	}
	for _, r := range acc.InPlace {
		if err := add(r, true); err != nil {
			return nil, err
		}
	}
	for _, r := range acc.Reads {
		if err := add(r, false); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Read returns the texels of a declared ref. Asking for an undeclared ref
// is a programming error in the stage constructor and panics.
func (b *Binding) Read(r Ref) []mgl32.Vec4 {
	v, ok := b.views[r]
	if !ok {
		panic(fmt.Sprintf("stage %q did not declare %s", b.Stage, r))
	}
	return v.data
}

// Write returns the texels of a ref declared in Writes or InPlace.
func (b *Binding) Write(r Ref) []mgl32.Vec4 {
	v, ok := b.views[r]
	if !ok || !v.writable {
		panic(fmt.Sprintf("stage %q did not declare %s as writable", b.Stage, r))
	}
	return v.data
}

// Dims returns the size of a declared ref.
func (b *Binding) Dims(r Ref) (w, h int) {
	v, ok := b.views[r]
	if !ok {
		panic(fmt.Sprintf("stage %q did not declare %s", b.Stage, r))
	}
	return v.w, v.h
}
