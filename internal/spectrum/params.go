package spectrum

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidWindSpeed  = errors.New("wind speed must be positive")
	ErrSizeNotPowerOfTwo = errors.New("grid size must be a power of two")
	ErrInvalidCutoff     = errors.New("cut-off band must satisfy 0 <= low < high")
	ErrInvalidParameter  = errors.New("invalid wave parameter")
)

// Parameters is the physical configuration of one surface. A value is an
// immutable snapshot: replacing it is what marks a surface for regeneration.
type Parameters struct {
	Size            int     `yaml:"size" json:"size"`
	LengthScale     float64 `yaml:"length_scale" json:"length_scale"`
	Depth           float64 `yaml:"depth" json:"depth"`
	Gravity         float64 `yaml:"gravity" json:"gravity"`
	WindSpeed       float64 `yaml:"wind_speed" json:"wind_speed"`
	WindDirection   float64 `yaml:"wind_direction" json:"wind_direction"` // degrees
	Fetch           float64 `yaml:"fetch" json:"fetch"`
	SpreadBlend     float64 `yaml:"spread_blend" json:"spread_blend"`
	Swell           float64 `yaml:"swell" json:"swell"`
	PeakEnhancement float64 `yaml:"peak_enhancement" json:"peak_enhancement"`
	ShortWavesFade  float64 `yaml:"short_waves_fade" json:"short_waves_fade"`
	Scale           float64 `yaml:"scale" json:"scale"`
	CutOffLow       float64 `yaml:"cut_off_low" json:"cut_off_low"`
	CutOffHigh      float64 `yaml:"cut_off_high" json:"cut_off_high"`
}

func DefaultParameters() Parameters {
	return Parameters{
		Size:            256,
		LengthScale:     150,
		Depth:           500,
		Gravity:         9.81,
		WindSpeed:       0.5,
		WindDirection:   200,
		Fetch:           100000,
		SpreadBlend:     1,
		Swell:           0.7,
		PeakEnhancement: 3.3,
		ShortWavesFade:  0.01,
		Scale:           1,
		CutOffLow:       0.0001,
		CutOffHigh:      9999,
	}
}

// IsPowerOfTwo reports whether n is a power of two >= 2.
func IsPowerOfTwo(n int) bool { return n >= 2 && n&(n-1) == 0 }

// Validate reports every configuration error in p at once.
func (p Parameters) Validate() error {
	var errs []error
	if !IsPowerOfTwo(p.Size) {
		errs = append(errs, fmt.Errorf("size %d: %w", p.Size, ErrSizeNotPowerOfTwo))
	}
	if !(p.WindSpeed > 0) || math.IsInf(p.WindSpeed, 0) {
		errs = append(errs, fmt.Errorf("wind_speed %g: %w", p.WindSpeed, ErrInvalidWindSpeed))
	}
	if !(p.CutOffLow >= 0) || !(p.CutOffLow < p.CutOffHigh) {
		errs = append(errs, fmt.Errorf("band [%g, %g): %w", p.CutOffLow, p.CutOffHigh, ErrInvalidCutoff))
	}
	positive := []struct {
		name string
		v    float64
	}{
		{"length_scale", p.LengthScale},
		{"depth", p.Depth},
		{"gravity", p.Gravity},
		{"fetch", p.Fetch},
		{"peak_enhancement", p.PeakEnhancement},
	}
	for _, f := range positive {
		if !(f.v > 0) || math.IsInf(f.v, 0) {
			errs = append(errs, fmt.Errorf("%s %g must be positive: %w", f.name, f.v, ErrInvalidParameter))
		}
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"wind_direction", p.WindDirection},
		{"spread_blend", p.SpreadBlend},
		{"swell", p.Swell},
		{"short_waves_fade", p.ShortWavesFade},
		{"scale", p.Scale},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			errs = append(errs, fmt.Errorf("%s is not finite: %w", f.name, ErrInvalidParameter))
		}
	}
	return errors.Join(errs...)
}

// Derived holds the quantities computed once per generation.
type Derived struct {
	Alpha     float64 // JONSWAP energy scale
	PeakOmega float64 // angular frequency of the spectral peak
	Angle     float64 // wind direction, radians
	Swell     float64 // clamped to [0.01, 1]
}

func (p Parameters) Derive() Derived {
	g, u, f := p.Gravity, p.WindSpeed, p.Fetch
	return Derived{
		Alpha:     0.076 * math.Pow(g*f/(u*u), -0.22),
		PeakOmega: 22 * math.Pow(u*f/(g*g), -0.33),
		Angle:     p.WindDirection / 180 * math.Pi,
		Swell:     clamp(p.Swell, 0.01, 1),
	}
}

// DeltaK is the wavenumber spacing of the grid.
func (p Parameters) DeltaK() float64 { return 2 * math.Pi / p.LengthScale }

// InBand reports whether wavenumber k lies in [CutOffLow, CutOffHigh).
func (p Parameters) InBand(k float64) bool { return k >= p.CutOffLow && k < p.CutOffHigh }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
