package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/adaptive-detect/internal/auth"
)

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format %q is not json or console", c.Logging.Format))
	}

	l := c.Learning
	if l.MinSamples < 1 {
		errs = append(errs, fmt.Errorf("learning.min_samples must be positive, got %d", l.MinSamples))
	}
	if l.LearningRate <= 0 || l.LearningRate >= 1 {
		errs = append(errs, fmt.Errorf("learning.learning_rate %v outside (0, 1)", l.LearningRate))
	}
	if l.MinWeight < 0 || l.MinWeight*3 > 1 {
		errs = append(errs, fmt.Errorf("learning.min_weight %v leaves no room for three layers", l.MinWeight))
	}
	if l.FPRateLow > l.FPRateUpper {
		errs = append(errs, fmt.Errorf("learning.fp_rate_low %v above fp_rate_upper %v", l.FPRateLow, l.FPRateUpper))
	}
	if l.ThresholdStep < 0 {
		errs = append(errs, fmt.Errorf("learning.threshold_step must not be negative"))
	}
	if l.AdjustmentMin > 0 || l.AdjustmentMax < 0 {
		errs = append(errs, fmt.Errorf("learning adjustment range [%v, %v] must contain 0", l.AdjustmentMin, l.AdjustmentMax))
	}
	if l.MaxWeightDelta <= 0 {
		errs = append(errs, fmt.Errorf("learning.max_weight_delta must be positive"))
	}

	w := c.Weights
	if sum := w.Semantic + w.Stylometry + w.CrossLang; math.Abs(sum-1) > 1e-6 {
		errs = append(errs, fmt.Errorf("weights sum to %v, want 1", sum))
	}
	for name, v := range map[string]float64{"semantic": w.Semantic, "stylometry": w.Stylometry, "cross_lang": w.CrossLang} {
		if v < l.MinWeight || v > 1 {
			errs = append(errs, fmt.Errorf("weights.%s %v outside [%v, 1]", name, v, l.MinWeight))
		}
	}
	if w.BaseThreshold < 0 || w.BaseThreshold > 100 {
		errs = append(errs, fmt.Errorf("weights.base_threshold %v outside [0, 100]", w.BaseThreshold))
	}

	a := c.Analyzer
	switch a.Mode {
	case "local":
	case "remote":
		if a.Address == "" {
			errs = append(errs, errors.New("analyzer.address is required in remote mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("analyzer.mode %q is not local or remote", a.Mode))
	}
	if a.CacheSize < 0 {
		errs = append(errs, errors.New("analyzer.cache_size must not be negative"))
	}
	if a.Concurrency < 1 {
		errs = append(errs, errors.New("analyzer.concurrency must be positive"))
	}

	for key, emails := range map[string][]string{"auth.admins": c.Auth.Admins, "auth.instructors": c.Auth.Instructors} {
		for _, e := range emails {
			if _, err := auth.NormalizeEmail(e); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}

	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1) {
		errs = append(errs, errors.New("rate_limit requires positive rps and burst when enabled"))
	}

	return errors.Join(errs...)
}
