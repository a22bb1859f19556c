package layer

import (
	"fmt"
	"strings"
)

// #region layer-type
// Layer identifies one independent detection signal source.
type Layer string

const (
	Semantic   Layer = "semantic"
	Stylometry Layer = "stylometry"
	CrossLang  Layer = "cross_lang"
	Paraphrase Layer = "paraphrase"
)

// All lists every layer in canonical order.
var All = []Layer{Semantic, Stylometry, CrossLang, Paraphrase}

// Weighted lists the layers that carry a fusion weight, in canonical order.
var Weighted = []Layer{Semantic, Stylometry, CrossLang}

// #endregion layer-type

// #region parse
// Parse converts a wire string to a Layer.
func Parse(s string) (Layer, error) {
	l := Layer(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("unknown detection layer %q (want one of semantic, stylometry, cross_lang, paraphrase)", s)
	}
	return l, nil
}

// Valid reports whether l is one of the known layers.
func (l Layer) Valid() bool {
	for _, k := range All {
		if l == k {
			return true
		}
	}
	return false
}

// Index returns the canonical position of l, or -1.
func (l Layer) Index() int {
	for i, k := range All {
		if l == k {
			return i
		}
	}
	return -1
}

// #endregion parse

// #region score
// Score is one analyzer's similarity value for one layer, in [0, 100].
type Score struct {
	Layer Layer   `json:"layer"`
	Value float64 `json:"value"`
}

// #endregion score
