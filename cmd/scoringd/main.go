// Command scoringd serves the detection, feedback and learning HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-detect/internal/analytics"
	"github.com/danielpatrickdp/adaptive-detect/internal/analyzer"
	"github.com/danielpatrickdp/adaptive-detect/internal/auth"
	"github.com/danielpatrickdp/adaptive-detect/internal/config"
	"github.com/danielpatrickdp/adaptive-detect/internal/corpus"
	"github.com/danielpatrickdp/adaptive-detect/internal/feedback"
	"github.com/danielpatrickdp/adaptive-detect/internal/gate"
	"github.com/danielpatrickdp/adaptive-detect/internal/logging"
	"github.com/danielpatrickdp/adaptive-detect/internal/metrics"
	"github.com/danielpatrickdp/adaptive-detect/internal/orchestrator"
	"github.com/danielpatrickdp/adaptive-detect/internal/server"
	"github.com/danielpatrickdp/adaptive-detect/internal/state"
	"github.com/danielpatrickdp/adaptive-detect/internal/tuner"
)

// #region main
func main() {
	configPath := flag.String("config", envOr("SCORING_CONFIG", "config.yaml"), "path to YAML config (optional)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("scoringd: %v", err)
	}
}

// #endregion main

// #region run
// run wires the service and blocks until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.LoggerConfig())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	store, err := state.NewStore(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	current, err := store.GetCurrent()
	if errors.Is(err, state.ErrNoActiveState) {
		logger.Info("no active weight state, seeding initial version")
		current, err = store.CreateInitialState(cfg.InitialWeights())
	}
	if err != nil {
		return fmt.Errorf("load weights: %w", err)
	}
	metrics.ObserveWeights(current.SemanticWeight, current.StylometryWeight, current.CrossLangWeight, current.EffectiveThreshold())

	fb, err := feedback.NewStore(store.DB())
	if err != nil {
		return fmt.Errorf("feedback store: %w", err)
	}
	docs, err := corpus.NewStore(store.DB())
	if err != nil {
		return fmt.Errorf("corpus store: %w", err)
	}
	users, err := auth.NewDirectory(store.DB(), cfg.Auth.Admins, cfg.Auth.Instructors, logger)
	if err != nil {
		return fmt.Errorf("user directory: %w", err)
	}

	an, closeAnalyzer, err := newAnalyzer(cfg.Analyzer)
	if err != nil {
		return err
	}
	defer closeAnalyzer()

	deps := server.Deps{
		Feedback: fb,
		States:   store,
		Corpus:   docs,
		Users:    users,
	}
	if cfg.Analyzer.CacheSize > 0 {
		cached, err := analyzer.NewCached(an, cfg.Analyzer.CacheSize)
		if err != nil {
			return fmt.Errorf("analyzer cache: %w", err)
		}
		an = cached
		deps.Cache = cached
	}

	live := state.NewLive(current)
	deps.Analytics = analytics.NewAggregator(fb, cfg.Learning.MinSamples)
	deps.Tuner = tuner.New(store, live, deps.Analytics, gate.NewGate(cfg.GateConfig()), cfg.TunerConfig(), logger.Named("tuner"))
	deps.Orchestrator = orchestrator.New(docs, an, live, cfg.OrchestratorConfig(), logger.Named("orchestrator"))

	srv, err := server.NewServer(deps, logger.Named("http"), &server.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		RateLimit: server.RateLimitConfig{
			Enabled: cfg.RateLimit.Enabled,
			RPS:     cfg.RateLimit.RPS,
			Burst:   cfg.RateLimit.Burst,
		},
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	logger.Info("scoringd ready",
		zap.String("db", cfg.Storage.Path),
		zap.String("analyzer", cfg.Analyzer.Mode),
		zap.String("weights_version", current.VersionID),
		zap.Float64("effective_threshold", current.EffectiveThreshold()),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// #endregion run

// #region helpers
func newAnalyzer(cfg config.AnalyzerConfig) (analyzer.Analyzer, func(), error) {
	switch cfg.Mode {
	case "remote":
		r, err := analyzer.NewRemote(cfg.Address, cfg.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("connect analyzer at %s: %w", cfg.Address, err)
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return analyzer.NewLocal(), func() {}, nil
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
