package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/oceanfft/internal/ocean"
	"github.com/coreman2200/oceanfft/internal/spectrum"
	"github.com/coreman2200/oceanfft/internal/weather"
)

// Cascade holds the values shared by the three bands.
type Cascade struct {
	Size          int     `yaml:"size"`
	WindSpeed     float64 `yaml:"wind_speed"`
	WindDirection float64 `yaml:"wind_direction"` // degrees
	Swell         float64 `yaml:"swell"`
}

// Spectrum holds the physical constants every band shares.
type Spectrum struct {
	Depth           float64 `yaml:"depth"`
	Gravity         float64 `yaml:"gravity"`
	Fetch           float64 `yaml:"fetch"`
	SpreadBlend     float64 `yaml:"spread_blend"`
	PeakEnhancement float64 `yaml:"peak_enhancement"`
	ShortWavesFade  float64 `yaml:"short_waves_fade"`
	Scale           float64 `yaml:"scale"`
}

type Config struct {
	Addr           string  `yaml:"addr"`
	FPS            int     `yaml:"fps"`
	Seed           uint64  `yaml:"seed"`
	Workers        int     `yaml:"workers"`          // 0 = GOMAXPROCS
	MemoryBudgetMB int     `yaml:"memory_budget_mb"` // per surface, 0 = unlimited
	Lambda         float64 `yaml:"lambda"`

	Cascade  Cascade          `yaml:"cascade"`
	Spectrum Spectrum         `yaml:"spectrum"`
	Weather  *weather.Program `yaml:"weather,omitempty"`
}

func Default() *Config {
	cp := ocean.DefaultCascadeParameters()
	sp := spectrum.DefaultParameters()
	return &Config{
		Addr:   ":8080",
		FPS:    30,
		Seed:   1,
		Lambda: 1.2,
		Cascade: Cascade{
			Size:          cp.Size,
			WindSpeed:     cp.WindSpeed,
			WindDirection: cp.WindDirection,
			Swell:         cp.Swell,
		},
		Spectrum: Spectrum{
			Depth:           sp.Depth,
			Gravity:         sp.Gravity,
			Fetch:           sp.Fetch,
			SpreadBlend:     sp.SpreadBlend,
			PeakEnhancement: sp.PeakEnhancement,
			ShortWavesFade:  sp.ShortWavesFade,
			Scale:           sp.Scale,
		},
	}
}

// Load reads path over the defaults, so a file only needs the keys it
// changes.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// CascadeParameters converts the cascade section.
func (c *Config) CascadeParameters() ocean.CascadeParameters {
	return ocean.CascadeParameters{
		Size:          c.Cascade.Size,
		WindSpeed:     c.Cascade.WindSpeed,
		WindDirection: c.Cascade.WindDirection,
		Swell:         c.Cascade.Swell,
	}
}

// SetCascade stores p back into the cascade section.
func (c *Config) SetCascade(p ocean.CascadeParameters) {
	c.Cascade = Cascade{Size: p.Size, WindSpeed: p.WindSpeed, WindDirection: p.WindDirection, Swell: p.Swell}
}

// BaseParameters returns the spectrum defaults with the spectrum section applied.
func (c *Config) BaseParameters() spectrum.Parameters {
	p := spectrum.DefaultParameters()
	p.Depth = c.Spectrum.Depth
	p.Gravity = c.Spectrum.Gravity
	p.Fetch = c.Spectrum.Fetch
	p.SpreadBlend = c.Spectrum.SpreadBlend
	p.PeakEnhancement = c.Spectrum.PeakEnhancement
	p.ShortWavesFade = c.Spectrum.ShortWavesFade
	p.Scale = c.Spectrum.Scale
	return p
}

// MemoryBudget is the per-surface budget in bytes.
func (c *Config) MemoryBudget() int64 { return int64(c.MemoryBudgetMB) << 20 }

// Validate rejects configurations the pipeline cannot run.
func (c *Config) Validate() error {
	var errs []error
	if c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps %d must be positive", c.FPS))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers %d must not be negative", c.Workers))
	}
	if c.MemoryBudgetMB < 0 {
		errs = append(errs, fmt.Errorf("memory_budget_mb %d must not be negative", c.MemoryBudgetMB))
	}
	if !(c.Lambda > 0) {
		errs = append(errs, fmt.Errorf("lambda %g must be positive", c.Lambda))
	}
	for i, p := range ocean.BandParameters(c.CascadeParameters(), c.BaseParameters()) {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("cascade %d: %w", i, err))
		}
	}
	if c.Weather != nil {
		if err := c.Weather.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("weather: %w", err))
		}
	}
	return errors.Join(errs...)
}
