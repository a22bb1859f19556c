// Package config provides configuration loading for the scoring service.
package config

import (
	"time"

	"github.com/danielpatrickdp/adaptive-detect/internal/gate"
	"github.com/danielpatrickdp/adaptive-detect/internal/logging"
	"github.com/danielpatrickdp/adaptive-detect/internal/orchestrator"
	"github.com/danielpatrickdp/adaptive-detect/internal/state"
	"github.com/danielpatrickdp/adaptive-detect/internal/tuner"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Logging   LoggingConfig   `koanf:"logging"`
	Learning  LearningConfig  `koanf:"learning"`
	Weights   WeightsConfig   `koanf:"weights"`
	Analyzer  AnalyzerConfig  `koanf:"analyzer"`
	Auth      AuthConfig      `koanf:"auth"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	BodyLimit       string        `koanf:"body_limit"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path string `koanf:"path"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// LearningConfig holds the retrain constants and the commit gate bounds.
type LearningConfig struct {
	MinSamples        int     `koanf:"min_samples"`
	LearningRate      float64 `koanf:"learning_rate"`
	ShareMargin       float64 `koanf:"share_margin"`
	MinWeight         float64 `koanf:"min_weight"`
	FPRateUpper       float64 `koanf:"fp_rate_upper"`
	FPRateLow         float64 `koanf:"fp_rate_low"`
	ConfirmedRateHigh float64 `koanf:"confirmed_rate_high"`
	ThresholdStep     float64 `koanf:"threshold_step"`
	AdjustmentMin     float64 `koanf:"adjustment_min"`
	AdjustmentMax     float64 `koanf:"adjustment_max"`
	MaxWeightDelta    float64 `koanf:"max_weight_delta"`
}

// WeightsConfig seeds the first weight version of a fresh database.
type WeightsConfig struct {
	Semantic      float64 `koanf:"semantic"`
	Stylometry    float64 `koanf:"stylometry"`
	CrossLang     float64 `koanf:"cross_lang"`
	BaseThreshold float64 `koanf:"base_threshold"`
}

// AnalyzerConfig selects and tunes the layer analyzer.
type AnalyzerConfig struct {
	Mode          string        `koanf:"mode"` // local | remote
	Address       string        `koanf:"address"`
	Timeout       time.Duration `koanf:"timeout"`
	CacheSize     int           `koanf:"cache_size"`
	Concurrency   int           `koanf:"concurrency"`
	SnippetLength int           `koanf:"snippet_length"`
}

// AuthConfig lists accounts promoted on every resolve.
type AuthConfig struct {
	Admins      []string `koanf:"admins"`
	Instructors []string `koanf:"instructors"`
}

// RateLimitConfig is a per-identity token bucket.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

// Default returns the built-in configuration.
func Default() Config {
	tc := tuner.DefaultConfig()
	gc := gate.DefaultGateConfig()
	w := state.DefaultWeights()
	oc := orchestrator.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			BodyLimit:       "2M",
		},
		Storage: StorageConfig{Path: "data/adaptive-detect.db"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Learning: LearningConfig{
			MinSamples:        20,
			LearningRate:      tc.LearningRate,
			ShareMargin:       tc.ShareMargin,
			MinWeight:         tc.MinWeight,
			FPRateUpper:       tc.FPRateUpper,
			FPRateLow:         tc.FPRateLow,
			ConfirmedRateHigh: tc.ConfirmedRateHigh,
			ThresholdStep:     tc.ThresholdStep,
			AdjustmentMin:     tc.AdjustmentMin,
			AdjustmentMax:     tc.AdjustmentMax,
			MaxWeightDelta:    gc.MaxWeightDelta,
		},
		Weights: WeightsConfig{
			Semantic:      w.SemanticWeight,
			Stylometry:    w.StylometryWeight,
			CrossLang:     w.CrossLangWeight,
			BaseThreshold: w.BaseThreshold,
		},
		Analyzer: AnalyzerConfig{
			Mode:          "local",
			Timeout:       5 * time.Second,
			CacheSize:     4096,
			Concurrency:   oc.Concurrency,
			SnippetLength: oc.SnippetLength,
		},
		RateLimit: RateLimitConfig{Enabled: true, RPS: 10, Burst: 20},
	}
}

// #region conversions

// TunerConfig returns the tuning constants.
func (c Config) TunerConfig() tuner.Config {
	l := c.Learning
	return tuner.Config{
		LearningRate:      l.LearningRate,
		ShareMargin:       l.ShareMargin,
		MinWeight:         l.MinWeight,
		FPRateUpper:       l.FPRateUpper,
		FPRateLow:         l.FPRateLow,
		ConfirmedRateHigh: l.ConfirmedRateHigh,
		ThresholdStep:     l.ThresholdStep,
		AdjustmentMin:     l.AdjustmentMin,
		AdjustmentMax:     l.AdjustmentMax,
	}
}

// GateConfig returns the commit gate bounds. The gate shares the tuner's
// floor and adjustment range so a proposal the tuner can produce is never
// rejected for those reasons alone.
func (c Config) GateConfig() gate.GateConfig {
	gc := gate.DefaultGateConfig()
	gc.MinWeight = c.Learning.MinWeight
	gc.AdjustmentMin = c.Learning.AdjustmentMin
	gc.AdjustmentMax = c.Learning.AdjustmentMax
	gc.MaxWeightDelta = c.Learning.MaxWeightDelta
	return gc
}

// InitialWeights returns the seed version for an empty store.
func (c Config) InitialWeights() state.WeightState {
	ws := state.DefaultWeights()
	ws.SemanticWeight = c.Weights.Semantic
	ws.StylometryWeight = c.Weights.Stylometry
	ws.CrossLangWeight = c.Weights.CrossLang
	ws.BaseThreshold = c.Weights.BaseThreshold
	return ws
}

// LoggerConfig returns the logger settings.
func (c Config) LoggerConfig() logging.Config {
	return logging.Config{Level: c.Logging.Level, Format: c.Logging.Format}
}

// OrchestratorConfig returns the detection fan-out settings.
func (c Config) OrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		Concurrency:   c.Analyzer.Concurrency,
		SnippetLength: c.Analyzer.SnippetLength,
	}
}

// #endregion conversions
