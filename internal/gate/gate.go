package gate

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/adaptive-detect/internal/layer"
	"github.com/danielpatrickdp/adaptive-detect/internal/state"
)

// #region gate
// Gate decides whether a proposed weight state may be committed.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Config returns the active bounds.
func (g *Gate) Config() GateConfig { return g.config }

// Evaluate runs every hard check against proposed. Any failure rejects the commit.
func (g *Gate) Evaluate(old, proposed state.WeightState) GateDecision {
	var vetoes []VetoSignal

	// 1. Weights form a distribution.
	sum := proposed.WeightSum()
	if math.IsNaN(sum) || math.Abs(sum-1.0) > g.config.SumTolerance {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoWeightSum,
			Reason: fmt.Sprintf("weights sum to %.9f", sum),
		})
	}

	// 2. Each weight stays inside [MinWeight, MaxWeight].
	for _, l := range layer.Weighted {
		w := proposed.Weight(l)
		if math.IsNaN(w) || w < g.config.MinWeight-1e-12 || w > g.config.MaxWeight+1e-12 {
			vetoes = append(vetoes, VetoSignal{
				Type:   VetoWeightRange,
				Reason: fmt.Sprintf("%s weight %.6f outside [%.2f, %.2f]", l, w, g.config.MinWeight, g.config.MaxWeight),
			})
		}
	}

	// 3. Threshold adjustment stays inside its clamp.
	adj := proposed.ThresholdAdjustment
	if math.IsNaN(adj) || adj < g.config.AdjustmentMin || adj > g.config.AdjustmentMax {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoAdjustment,
			Reason: fmt.Sprintf("threshold adjustment %.2f outside [%.2f, %.2f]", adj, g.config.AdjustmentMin, g.config.AdjustmentMax),
		})
	}

	// 4. Unclamped effective threshold is a valid score.
	raw := proposed.BaseThreshold + proposed.ThresholdAdjustment
	if raw < 0 || raw > 100 {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoThreshold,
			Reason: fmt.Sprintf("effective threshold %.2f outside [0, 100]", raw),
		})
	}

	// 5. Bounded movement per commit.
	delta := WeightDelta(old, proposed)
	if delta > g.config.MaxWeightDelta {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoDelta,
			Reason: fmt.Sprintf("weight delta %.4f exceeds cap %.4f", delta, g.config.MaxWeightDelta),
		})
	}

	if len(vetoes) > 0 {
		return GateDecision{
			Action:      "reject",
			Reason:      fmt.Sprintf("hard veto: %s", vetoes[0].Reason),
			Vetoed:      true,
			VetoSignals: vetoes,
			WeightDelta: delta,
		}
	}

	return GateDecision{
		Action:      "commit",
		Reason:      fmt.Sprintf("passed gate: weight_delta=%.4f", delta),
		WeightDelta: delta,
	}
}

// #endregion gate

// #region helpers
// WeightDelta is the L1 distance between the weight vectors of a and b.
func WeightDelta(a, b state.WeightState) float64 {
	var d float64
	for _, l := range layer.Weighted {
		d += math.Abs(b.Weight(l) - a.Weight(l))
	}
	return d
}

// #endregion helpers
