// Package fusion combines per-layer similarity scores into one plagiarism score.
package fusion

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/danielpatrickdp/adaptive-detect/internal/layer"
	"github.com/danielpatrickdp/adaptive-detect/internal/state"
)

// ErrInvalidInput is returned for out-of-range scores, repeated or unknown
// layers, and weight vectors that do not sum to 1.
var ErrInvalidInput = errors.New("invalid fusion input")

const weightTolerance = 1e-6

// #region types
// Candidate is one corpus document with the layer scores computed against it.
type Candidate struct {
	DocID       string
	Owner       string
	LayerScores []layer.Score
	Snippet     string
	Language    string
}

// Result is a fused, classified candidate. It is only meaningful together with
// the weight version that produced it.
type Result struct {
	DocID              string        `json:"doc_id"`
	FusedScore         float64       `json:"score"`
	IsFlagged          bool          `json:"is_flagged"`
	IsCrossLanguage    bool          `json:"is_cross_language"`
	ContributingLayers []layer.Score `json:"layers"`
	Snippet            string        `json:"snippet"`
}

// #endregion types

// #region fuse
// Fuse computes Σ weight×value over the layers present in c. Absent layers add
// nothing and their weight is not redistributed, so missing evidence never
// raises a score.
func Fuse(c Candidate, w state.WeightState) (Result, error) {
	if sum := w.WeightSum(); math.IsNaN(sum) || math.Abs(sum-1.0) > weightTolerance {
		return Result{}, fmt.Errorf("%w: weights sum to %.9f", ErrInvalidInput, sum)
	}

	seen := make(map[layer.Layer]bool, len(c.LayerScores))
	scores := make([]layer.Score, 0, len(c.LayerScores))
	var fused float64
	var crossLang bool
	for _, s := range c.LayerScores {
		if !s.Layer.Valid() {
			return Result{}, fmt.Errorf("%w: unknown layer %q", ErrInvalidInput, s.Layer)
		}
		if seen[s.Layer] {
			return Result{}, fmt.Errorf("%w: layer %s repeated", ErrInvalidInput, s.Layer)
		}
		if math.IsNaN(s.Value) || s.Value < 0 || s.Value > 100 {
			return Result{}, fmt.Errorf("%w: %s score %v outside [0, 100]", ErrInvalidInput, s.Layer, s.Value)
		}
		seen[s.Layer] = true
		scores = append(scores, s)
		fused += w.Weight(s.Layer) * s.Value
		if s.Layer == layer.CrossLang && s.Value > 0 {
			crossLang = true
		}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Layer.Index() < scores[j].Layer.Index() })

	fused = math.Max(0, math.Min(100, fused))
	return Result{
		DocID:              c.DocID,
		FusedScore:         fused,
		IsFlagged:          fused >= w.EffectiveThreshold(),
		IsCrossLanguage:    crossLang,
		ContributingLayers: scores,
		Snippet:            c.Snippet,
	}, nil
}

// #endregion fuse
