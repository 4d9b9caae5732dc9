package ocean

import (
	"context"
	"math"
	"testing"

	"github.com/coreman2200/oceanfft/internal/spectrum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBandsPartition(t *testing.T) {
	b1, b2 := Boundaries()
	assert.Greater(t, b1, 0.0)
	assert.Less(t, b1, b2)

	bands := Bands()
	assert.Equal(t, bands[0].High, bands[1].Low)
	assert.Equal(t, bands[1].High, bands[2].Low)
	for _, b := range bands {
		assert.Less(t, b.Low, b.High)
	}
	assert.InDelta(t, 2*math.Pi/85*6, b1, 1e-12)
}

func TestBandParameters(t *testing.T) {
	base := spectrum.DefaultParameters()
	base.Depth = 40
	bands := BandParameters(DefaultCascadeParameters(), base)
	for i, p := range bands {
		require.NoError(t, p.Validate())
		assert.Equal(t, LengthScales[i], p.LengthScale)
		assert.Equal(t, 256, p.Size)
		assert.Equal(t, 10.0, p.WindSpeed)
		assert.Equal(t, -20.0, p.WindDirection)
		assert.Equal(t, 0.4, p.Swell)
		assert.Equal(t, 40.0, p.Depth)
	}
	assert.Equal(t, bands[0].CutOffHigh, bands[1].CutOffLow)
	assert.Equal(t, bands[1].CutOffHigh, bands[2].CutOffLow)
}

// The default cascade from a fresh start must produce finite fields
// everywhere after one frame.
func TestDefaultCascadeFinite(t *testing.T) {
	if testing.Short() {
		t.Skip("full 256 cascade")
	}
	ctx := context.Background()
	c, err := NewCascade(DefaultCascadeParameters())
	require.NoError(t, err)
	require.NoError(t, c.Init(ctx))
	require.NoError(t, c.Dispatch(ctx, 0, frame))

	for i, s := range c.Surfaces() {
		assert.Equal(t, 256, s.Displacement().Width)
		for l := 0; l < s.Displacement().MipCount(); l++ {
			for ch := 0; ch < 4; ch++ {
				assert.True(t, ChannelStats(s.Displacement(), ch, l).Finite(), "cascade %d displacement level %d channel %d", i, l, ch)
				assert.True(t, ChannelStats(s.Derivatives(), ch, l).Finite(), "cascade %d derivatives level %d channel %d", i, l, ch)
			}
		}
	}
}

func smallCascade(t *testing.T) *Cascade {
	t.Helper()
	p := DefaultCascadeParameters()
	p.Size = 16
	c, err := NewCascade(p, WithSeed(4))
	require.NoError(t, err)
	require.NoError(t, c.Init(context.Background()))
	return c
}

func TestCascadeBandsDiffer(t *testing.T) {
	c := smallCascade(t)
	require.NoError(t, c.Dispatch(context.Background(), 3, frame))
	assert.NotEqual(t, snapshot(c.Surface(0).Spectrum()), snapshot(c.Surface(1).Spectrum()))
	for i, s := range c.Surfaces() {
		assert.Equal(t, LengthScales[i], s.Parameters().LengthScale)
		assert.Equal(t, Ready, s.State())
	}
}

func TestCascadeChangeParameters(t *testing.T) {
	c := smallCascade(t)

	bad := c.Parameters()
	bad.WindSpeed = 0
	assert.ErrorIs(t, c.ChangeParameters(bad), spectrum.ErrInvalidWindSpeed)
	for _, s := range c.Surfaces() {
		assert.Equal(t, Ready, s.State(), "a rejected change touches no band")
	}

	next := c.Parameters()
	next.WindSpeed = 14
	require.NoError(t, c.ChangeParameters(next))
	assert.Equal(t, next, c.Parameters())
	for _, s := range c.Surfaces() {
		assert.Equal(t, PendingRegeneration, s.State())
	}
	require.NoError(t, c.Dispatch(context.Background(), 1, frame))
	for _, s := range c.Surfaces() {
		assert.Equal(t, 14.0, s.Parameters().WindSpeed)
		assert.Equal(t, 2, s.Generations())
	}
}

func TestMergeDisplacementIsExplicit(t *testing.T) {
	ctx := context.Background()
	c := smallCascade(t)
	require.NoError(t, c.Dispatch(ctx, 2, frame))

	merged, err := c.MergeDisplacement(ctx)
	require.NoError(t, err)
	for _, i := range []int{0, 37, 255} {
		var want [3]float32
		for _, s := range c.Surfaces() {
			v := s.Displacement().Level(0)[i]
			want[0] += v[0]
			want[1] += v[1]
			want[2] += v[2]
		}
		got := merged.Level(0)[i]
		assert.InDelta(t, want[0], got[0], 1e-5)
		assert.InDelta(t, want[1], got[1], 1e-5)
		assert.InDelta(t, want[2], got[2], 1e-5)
		assert.Zero(t, got[3])
	}

	again, err := c.MergeDisplacement(ctx)
	require.NoError(t, err)
	assert.Same(t, merged, again)
}

func TestMergeDisplacementNeedsInit(t *testing.T) {
	p := DefaultCascadeParameters()
	p.Size = 16
	c, err := NewCascade(p)
	require.NoError(t, err)
	_, err = c.MergeDisplacement(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
}
