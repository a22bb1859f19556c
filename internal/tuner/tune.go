package tuner

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/adaptive-detect/internal/analytics"
	"github.com/danielpatrickdp/adaptive-detect/internal/layer"
	"github.com/danielpatrickdp/adaptive-detect/internal/state"
)

// #region tune
// Tune computes the next weight state from the current one and a feedback
// snapshot. The weight and threshold arithmetic depends only on its inputs;
// only the new version id and timestamp are fresh.
func Tune(old state.WeightState, snap analytics.Snapshot, cfg Config) Result {
	if !snap.LearningActive {
		return Result{
			NewState: old,
			Decision: Decision{
				Action: "no_op",
				Reason: fmt.Sprintf("learning inactive: %d of %d samples", snap.TotalFeedback, snap.MinSamples),
			},
		}
	}

	next := old
	m := Metrics{FPShares: make(map[layer.Layer]float64, len(layer.Weighted))}

	// 1. Penalize layers carrying a disproportionate share of attributed false positives.
	attributed := snap.AttributedFalsePositives()
	var totalAttr int
	for _, n := range attributed {
		totalAttr += n
	}
	if totalAttr > 0 {
		penalized := map[layer.Layer]bool{}
		for _, l := range layer.Weighted {
			share := float64(attributed[l]) / float64(totalAttr)
			m.FPShares[l] = share
			w := old.Weight(l)
			if share <= w+cfg.ShareMargin {
				continue
			}
			reduced := math.Max(cfg.MinWeight, w-cfg.LearningRate)
			dec := w - reduced
			if dec <= 1e-12 {
				continue
			}
			next = next.WithWeight(l, reduced)
			m.FreedMass += dec
			penalized[l] = true
			m.PenalizedLayers = append(m.PenalizedLayers, l)
		}

		// 2. Hand the freed mass to the remaining layers in proportion to their weight.
		var receivers float64
		for _, l := range layer.Weighted {
			if !penalized[l] {
				receivers += old.Weight(l)
			}
		}
		if m.FreedMass > 0 && receivers > 0 {
			for _, l := range layer.Weighted {
				if penalized[l] {
					continue
				}
				w := old.Weight(l)
				next = next.WithWeight(l, w+m.FreedMass*w/receivers)
			}
		} else if m.FreedMass > 0 {
			next = old
			m.FreedMass = 0
			m.PenalizedLayers = nil
		}
	}

	// 3. Move the threshold adjustment by one bounded step.
	adj := old.ThresholdAdjustment
	switch {
	case snap.FalsePositiveRate > cfg.FPRateUpper:
		adj += cfg.ThresholdStep
	case snap.ConfirmedRate >= cfg.ConfirmedRateHigh && snap.FalsePositiveRate <= cfg.FPRateLow:
		adj -= cfg.ThresholdStep
	}
	adj = clampAdjustment(adj, old.BaseThreshold, cfg)
	next.ThresholdAdjustment = adj
	m.ThresholdStep = adj - old.ThresholdAdjustment

	m.WeightDelta = weightDelta(old, next)
	if m.WeightDelta == 0 && m.ThresholdStep == 0 {
		return Result{
			NewState: old,
			Decision: Decision{Action: "no_op", Reason: "aggregates do not move weights or threshold"},
			Metrics:  m,
		}
	}

	next.VersionID = uuid.New().String()
	next.ParentID = old.VersionID
	next.TotalFeedbackProcessed = snap.TotalFeedback
	next.CreatedAt = time.Now().UTC()
	next.MetricsJSON = ""

	return Result{
		NewState: next,
		Decision: Decision{Action: "commit", Reason: describe(m)},
		Metrics:  m,
	}
}

// #endregion tune

// #region helpers
// clampAdjustment bounds adj to the configured range and keeps base+adj inside [0, 100].
func clampAdjustment(adj, base float64, cfg Config) float64 {
	lo := math.Max(cfg.AdjustmentMin, -base)
	hi := math.Min(cfg.AdjustmentMax, 100-base)
	if lo > hi {
		return 0
	}
	return math.Max(lo, math.Min(hi, adj))
}

func weightDelta(a, b state.WeightState) float64 {
	var d float64
	for _, l := range layer.Weighted {
		d += math.Abs(b.Weight(l) - a.Weight(l))
	}
	return d
}

func describe(m Metrics) string {
	var parts []string
	if len(m.PenalizedLayers) > 0 {
		names := make([]string, len(m.PenalizedLayers))
		for i, l := range m.PenalizedLayers {
			names[i] = string(l)
		}
		parts = append(parts, fmt.Sprintf("penalized %s (freed %.4f)", strings.Join(names, ","), m.FreedMass))
	}
	if m.ThresholdStep != 0 {
		parts = append(parts, fmt.Sprintf("threshold adjustment %+.2f", m.ThresholdStep))
	}
	return strings.Join(parts, "; ")
}

// #endregion helpers
