package analyzer

import (
	"context"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/danielpatrickdp/adaptive-detect/internal/layer"
)

// #region local
// Local is the in-process lexical baseline. It scores semantic as word
// term-frequency cosine, stylometry as profile similarity, and cross_lang as
// character-trigram cosine when both languages are known and differ.
type Local struct{}

// NewLocal returns the lexical baseline analyzer.
func NewLocal() *Local { return &Local{} }

// Score implements Analyzer.
func (l *Local) Score(ctx context.Context, sub Submission, doc Document) ([]layer.Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores := []layer.Score{
		{Layer: layer.Semantic, Value: clampScore(Cosine(termFreq(words(sub.Text)), termFreq(words(doc.Text))) * 100)},
		{Layer: layer.Stylometry, Value: StyleSimilarity(Stylometry(sub.Text), Stylometry(doc.Text))},
	}
	if crossLanguage(sub.Language, doc.Language) {
		scores = append(scores, layer.Score{
			Layer: layer.CrossLang,
			Value: clampScore(Cosine(termFreq(trigrams(sub.Text)), termFreq(trigrams(doc.Text))) * 100),
		})
	}
	return scores, nil
}

// #endregion local

// #region cosine
// Cosine returns the cosine similarity of two sparse count vectors, 0 when either is empty.
func Cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	vocab := make(map[string]int, len(a)+len(b))
	for k := range a {
		vocab[k] = len(vocab)
	}
	for k := range b {
		if _, ok := vocab[k]; !ok {
			vocab[k] = len(vocab)
		}
	}
	va := make([]float64, len(vocab))
	vb := make([]float64, len(vocab))
	for k, i := range vocab {
		va[i] = a[k]
		vb[i] = b[k]
	}

	denom := floats.Norm(va, 2) * floats.Norm(vb, 2)
	if denom == 0 {
		return 0
	}
	return floats.Dot(va, vb) / denom
}

// #endregion cosine

// #region helpers
func termFreq(tokens []string) map[string]float64 {
	tf := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

func trigrams(text string) []string {
	r := []rune(strings.Join(words(text), " "))
	if len(r) < 3 {
		return nil
	}
	out := make([]string, 0, len(r)-2)
	for i := 0; i+3 <= len(r); i++ {
		out = append(out, string(r[i:i+3]))
	}
	return out
}

func crossLanguage(a, b string) bool {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	return a != "" && b != "" && a != b
}

// #endregion helpers
