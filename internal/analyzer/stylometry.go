package analyzer

import (
	"math"
	"strings"
	"unicode"
)

// #region profile
// Profile is a small stylometric fingerprint of a text.
type Profile struct {
	AvgSentenceLength  float64 `json:"avg_sentence_length"`
	VocabularyRichness float64 `json:"vocabulary_richness"`
	AvgWordLength      float64 `json:"avg_word_length"`
	TotalSentences     int     `json:"total_sentences"`
	TotalWords         int     `json:"total_words"`
}

// Stylometry computes the Profile of text. Empty text yields the zero Profile.
func Stylometry(text string) Profile {
	sentences := splitSentences(text)
	var lengths []int
	unique := map[string]struct{}{}
	var totalWords, totalChars int
	for _, s := range sentences {
		ws := words(s)
		if len(ws) == 0 {
			continue
		}
		lengths = append(lengths, len(ws))
		for _, w := range ws {
			unique[w] = struct{}{}
			totalChars += len([]rune(w))
		}
		totalWords += len(ws)
	}
	if totalWords == 0 {
		return Profile{}
	}

	var sum int
	for _, n := range lengths {
		sum += n
	}
	return Profile{
		AvgSentenceLength:  round2(float64(sum) / float64(len(lengths))),
		VocabularyRichness: round2(float64(len(unique)) / float64(totalWords)),
		AvgWordLength:      round2(float64(totalChars) / float64(totalWords)),
		TotalSentences:     len(sentences),
		TotalWords:         totalWords,
	}
}

// #endregion profile

// #region similarity
// StyleSimilarity compares two profiles on a 0-100 scale. Each feature
// contributes 1 - relative difference; the result is their mean.
func StyleSimilarity(a, b Profile) float64 {
	if a.TotalWords == 0 || b.TotalWords == 0 {
		return 0
	}
	pairs := [][2]float64{
		{a.AvgSentenceLength, b.AvgSentenceLength},
		{a.VocabularyRichness, b.VocabularyRichness},
		{a.AvgWordLength, b.AvgWordLength},
	}
	var total float64
	for _, p := range pairs {
		hi := math.Max(p[0], p[1])
		if hi == 0 {
			total++
			continue
		}
		total += 1 - math.Abs(p[0]-p[1])/hi
	}
	return clampScore(total / float64(len(pairs)) * 100)
}

// #endregion similarity

// #region helpers
func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// words returns the lowercase alphanumeric tokens of s.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// #endregion helpers
