package orchestrator

// #region imports
import (
	"context"
	"errors"

	"github.com/danielpatrickdp/adaptive-detect/internal/analyzer"
	"github.com/danielpatrickdp/adaptive-detect/internal/fusion"
)

// #endregion

// ErrInvalidInput is returned for empty submissions, unknown corpora and
// cross-user requests without a requester.
var ErrInvalidInput = errors.New("invalid detect request")

// #region corpus

// Corpus selects which documents a submission is compared against.
type Corpus string

const (
	CorpusReferences Corpus = "references"
	CorpusCrossUser  Corpus = "cross_user"
)

// Valid reports whether c is a known corpus.
func (c Corpus) Valid() bool {
	return c == CorpusReferences || c == CorpusCrossUser
}

// CorpusProvider yields candidate documents. *corpus.Store satisfies it.
type CorpusProvider interface {
	References(ctx context.Context) ([]analyzer.Document, error)
	UserDocuments(ctx context.Context, excludeOwner string) ([]analyzer.Document, error)
}

// #endregion

// #region request-report

// Request is one detection run.
type Request struct {
	Text      string
	Requester string
	Corpus    Corpus
	Language  string
}

// Report is the ranked outcome of a detection run. Every match was fused
// against the same weight version, named by WeightsVersion.
type Report struct {
	MaxScore              float64          `json:"max_score"`
	Matches               []fusion.Result  `json:"matches"`
	Stylometry            analyzer.Profile `json:"stylometry"`
	Language              string           `json:"language,omitempty"` // given or detected
	TotalDocumentsChecked int              `json:"total_documents_checked"`
	EffectiveThreshold    float64          `json:"effective_threshold"`
	WeightsVersion        string           `json:"weights_version"`
}

// #endregion

// #region config

// Config bounds analyzer fan-out and snippet length.
type Config struct {
	Concurrency   int
	SnippetLength int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:   8,
		SnippetLength: 200,
	}
}

// #endregion
