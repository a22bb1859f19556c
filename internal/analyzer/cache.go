package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/danielpatrickdp/adaptive-detect/internal/layer"
	"github.com/danielpatrickdp/adaptive-detect/internal/metrics"
)

// #region cached
// Cached memoizes another Analyzer's scores, keyed by submission hash, doc id
// and languages. Scores depend only on text, so a hit is always valid; weights
// are applied later by fusion.
type Cached struct {
	next  Analyzer
	cache *lru.Cache[string, []layer.Score]
}

// NewCached wraps next with an LRU of the given size.
func NewCached(next Analyzer, size int) (*Cached, error) {
	c, err := lru.New[string, []layer.Score](size)
	if err != nil {
		return nil, fmt.Errorf("analyzer cache: %w", err)
	}
	return &Cached{next: next, cache: c}, nil
}

// Score implements Analyzer.
func (c *Cached) Score(ctx context.Context, sub Submission, doc Document) ([]layer.Score, error) {
	key := cacheKey(sub, doc)
	if v, ok := c.cache.Get(key); ok {
		metrics.AnalyzerCacheLookups.WithLabelValues("hit").Inc()
		return append([]layer.Score(nil), v...), nil
	}
	metrics.AnalyzerCacheLookups.WithLabelValues("miss").Inc()

	scores, err := c.next.Score(ctx, sub, doc)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, append([]layer.Score(nil), scores...))
	return scores, nil
}

// Purge drops every entry, used when a document is deleted or replaced.
func (c *Cached) Purge() { c.cache.Purge() }

// Len returns the number of cached entries.
func (c *Cached) Len() int { return c.cache.Len() }

func cacheKey(sub Submission, doc Document) string {
	return hashText(sub.Text) + "|" + sub.Language + "|" + doc.DocID + "|" + hashText(doc.Text) + "|" + doc.Language
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// #endregion cached
