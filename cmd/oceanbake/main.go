// Command oceanbake steps a cascade headless on a fixed clock and prints
// per-frame height statistics. Useful for checking a weather program or a
// parameter set without the preview server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/oceanfft/internal/compute"
	"github.com/coreman2200/oceanfft/internal/config"
	diag "github.com/coreman2200/oceanfft/internal/diagnostics"
	"github.com/coreman2200/oceanfft/internal/ocean"
	"github.com/coreman2200/oceanfft/internal/sim"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to ocean.yaml (defaults when empty)")
		frames     = flag.Int("frames", 120, "frames to run")
		fps        = flag.Int("fps", 30, "simulated frames per second")
		every      = flag.Int("every", 10, "print every n-th frame")
		merged     = flag.Bool("merged", false, "also print the merged displacement of all bands")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cfg := config.Default()
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("config load failed")
		}
		cfg = c
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	cascade, err := ocean.NewCascade(cfg.CascadeParameters(),
		ocean.WithDevice(compute.NewDevice(cfg.Workers)),
		ocean.WithSeed(cfg.Seed),
		ocean.WithLambda(cfg.Lambda),
		ocean.WithBaseParameters(cfg.BaseParameters()),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("cascade setup failed")
	}

	ctx := context.Background()
	engine := sim.NewEngine(cascade)
	engine.OnDiag = func(d diag.Diagnostic) {
		fmt.Printf("[%s] %s %s\n", d.Severity, d.Code, d.Summary)
	}
	engine.OnFrame = func(f sim.Frame) {
		if int(f.ID)%max(1, *every) != 0 {
			return
		}
		p := f.Cascade.Parameters()
		fmt.Printf("frame %4d t=%7.3fs wind=%5.2f dir=%6.1f swell=%.2f",
			f.ID, f.T, p.WindSpeed, p.WindDirection, p.Swell)
		for i, s := range f.Cascade.Surfaces() {
			h := ocean.HeightStats(s.Displacement(), 0)
			fmt.Printf(" | c%d [%+.3f %+.3f] std %.3f", i, h.Min, h.Max, h.Std)
		}
		if *merged {
			m, err := f.Cascade.MergeDisplacement(ctx)
			if err != nil {
				log.Error().Err(err).Msg("merge failed")
			} else {
				h := ocean.HeightStats(m, 0)
				fmt.Printf(" | sum [%+.3f %+.3f]", h.Min, h.Max)
			}
		}
		fmt.Println()
	}
	if cfg.Weather != nil {
		if err := engine.LoadWeather(*cfg.Weather); err != nil {
			log.Fatal().Err(err).Msg("weather program rejected")
		}
	}

	dt := time.Second / time.Duration(max(1, *fps))
	start := time.Now()
	for i := 1; i <= *frames; i++ {
		t := float64(i) * dt.Seconds()
		if err := engine.Step(ctx, t, dt); err != nil {
			log.Fatal().Err(err).Int("frame", i).Msg("step failed")
		}
	}
	elapsed := time.Since(start)
	log.Info().Int("frames", *frames).Dur("elapsed", elapsed).
		Float64("ms_per_frame", float64(elapsed.Microseconds())/1000/float64(max(1, *frames))).
		Msg("done")
}
