package ocean

import (
	"math"

	"github.com/coreman2200/oceanfft/internal/texture"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarises one channel of a field level.
type Stats struct {
	Min, Max  float64
	Mean, Std float64
	NonFinite int
}

// Finite reports whether every sample was a finite number.
func (s Stats) Finite() bool { return s.NonFinite == 0 }

// HeightStats summarises the height channel of displacement level l.
func HeightStats(t *texture.Texture, l int) Stats {
	return ChannelStats(t, 1, l)
}

// ChannelStats summarises channel c of level l. Non-finite samples are
// counted and left out of the moments.
func ChannelStats(t *texture.Texture, c, l int) Stats {
	all := t.Channel(nil, c, l)
	vals := all[:0]
	var st Stats
	for _, v := range all {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			st.NonFinite++
			continue
		}
		vals = append(vals, v)
	}
	if len(vals) == 0 {
		return st
	}
	st.Min = floats.Min(vals)
	st.Max = floats.Max(vals)
	if len(vals) == 1 {
		st.Mean = vals[0]
		return st
	}
	st.Mean, st.Std = stat.MeanStdDev(vals, nil)
	return st
}
