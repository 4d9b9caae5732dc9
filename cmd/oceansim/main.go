package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/oceanfft/internal/compute"
	"github.com/coreman2200/oceanfft/internal/config"
	"github.com/coreman2200/oceanfft/internal/ocean"
	"github.com/coreman2200/oceanfft/internal/sim"
	"github.com/coreman2200/oceanfft/internal/ws"
)

func main() {
	// ---- Flags (config file wins where it sets a value) ----
	var (
		configPath = flag.String("config", "ocean.yaml", "path to ocean.yaml")
		addr       = flag.String("addr", "", "HTTP listen address")
		fps        = flag.Int("fps", 0, "target frames per second")
		size       = flag.Int("size", 0, "grid size per cascade (power of two)")
		seed       = flag.Uint64("seed", 0, "noise seed")
		workers    = flag.Int("workers", -1, "compute workers, 0 = GOMAXPROCS")
		timeScale  = flag.Float64("time-scale", 1, "simulation seconds per wall second")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	// ---- Config ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; using defaults")
		cfg = config.Default()
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *fps > 0 {
		cfg.FPS = *fps
	}
	if *size > 0 {
		cfg.Cascade.Size = *size
	}
	if *seed > 0 {
		cfg.Seed = *seed
	}
	if *workers >= 0 {
		cfg.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// ---- Cascade ----
	dev := compute.NewDevice(cfg.Workers)
	cascade, err := ocean.NewCascade(cfg.CascadeParameters(),
		ocean.WithDevice(dev),
		ocean.WithSeed(cfg.Seed),
		ocean.WithMemoryBudget(cfg.MemoryBudget()),
		ocean.WithLambda(cfg.Lambda),
		ocean.WithBaseParameters(cfg.BaseParameters()),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("cascade setup failed")
	}

	engine := sim.NewEngine(cascade)
	engine.TimeScale = *timeScale
	if cfg.Weather != nil {
		if err := engine.LoadWeather(*cfg.Weather); err != nil {
			log.Fatal().Err(err).Msg("weather program rejected")
		}
	}

	state := ws.NewState(engine, cfg)
	state.ConfigPath = *configPath
	engine.OnFrame = state.PublishFrame
	engine.OnDiag = state.PushDiag

	// ---- HTTP routes ----
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", state.HandleFramesWS)
	mux.HandleFunc("/diag", state.HandleDiagWS)
	mux.HandleFunc("/control", state.HandleControlWS)
	mux.HandleFunc("/health", state.HandleHealth)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      withCORS(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ---- Run simulation & server ----
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info().Int("fps", cfg.FPS).Int("size", cfg.Cascade.Size).Int("workers", dev.Workers()).Msg("simulation starting")
		if err := engine.Run(ctx, cfg.FPS); err != nil {
			log.Error().Err(err).Msg("simulation stopped")
		}
	}()
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server crashed")
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	<-done
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}
