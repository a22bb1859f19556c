// Package analyzer computes per-layer similarity scores between a submission
// and one corpus document. Fusion never sees raw text; it only sees the
// layer.Score values produced here.
package analyzer

import (
	"context"

	"github.com/danielpatrickdp/adaptive-detect/internal/layer"
)

// #region types
// Document is the corpus side of a comparison.
type Document struct {
	DocID    string
	Owner    string
	Text     string
	Language string
}

// Analyzer scores a submission against one document. Implementations return
// at most one score per layer, each in [0, 100], and may omit layers they
// cannot compute.
type Analyzer interface {
	Score(ctx context.Context, submission Submission, doc Document) ([]layer.Score, error)
}

// Submission is the text under test.
type Submission struct {
	Text     string
	Language string
}

// #endregion types
