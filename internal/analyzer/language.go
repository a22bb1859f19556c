package analyzer

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// #region stopwords
// stopwords holds high-frequency function words per language. Words shared
// by several languages ("a", "de", "la", "in") are left out so a hit counts
// for one language only.
var stopwords = map[string]map[string]bool{
	"en": set("the", "is", "are", "was", "were", "have", "has", "had", "been", "will",
		"would", "could", "should", "not", "and", "or", "but", "if", "then", "than",
		"at", "by", "for", "from", "of", "on", "to", "with", "about", "it", "its",
		"this", "that", "what", "which", "who", "how", "when", "where", "why", "you",
		"they", "we", "he", "she", "their"),
	"es": set("el", "los", "las", "una", "unos", "es", "están", "fue", "y", "pero",
		"si", "por", "para", "que", "qué", "como", "cuando", "donde", "muy", "más",
		"también", "del", "su", "sus"),
	"fr": set("le", "les", "une", "des", "est", "sont", "était", "et", "mais", "ou",
		"pour", "avec", "sans", "sur", "dans", "qui", "quoi", "comme", "quand", "où",
		"très", "aussi", "du", "au", "aux", "ce", "cette", "nous", "vous"),
	"de": set("der", "das", "ein", "eine", "ist", "sind", "und", "aber", "oder", "für",
		"mit", "ohne", "auf", "im", "dem", "nicht", "wie", "wenn", "sehr", "auch",
		"zu", "sich", "ich", "wir", "sie"),
	"it": set("il", "lo", "gli", "uno", "è", "sono", "ma", "oppure", "senza", "nel",
		"nella", "che", "chi", "quando", "molto", "anche", "della", "delle", "dei", "alla",
		"questo", "questa", "noi", "voi"),
	"pt": set("os", "uma", "um", "são", "estão", "foi", "mas", "sem", "não", "muito",
		"então", "da", "dos", "ao", "seu", "sua", "isso", "este", "esta",
		"nós", "vocês"),
	"nl": set("het", "een", "zijn", "en", "maar", "voor", "met", "zonder", "op", "niet",
		"hoe", "wanneer", "waar", "zeer", "ook", "naar", "dit", "deze", "wij", "jullie",
		"ik", "heb", "heeft"),
}

// LanguageNames maps the detectable codes to display names.
var LanguageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"nl": "Dutch",
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// #endregion stopwords

// #region detect
const (
	minDetectRunes = 10
	minDetectHits  = 2
)

// LanguageGuess is one candidate language with the share of stopword hits it received.
type LanguageGuess struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Probability float64 `json:"probability"` // percent, one decimal
}

// DetectLanguages ranks candidate languages by stopword hits, most likely first.
// It returns nil for text shorter than 10 characters or with too few hits.
func DetectLanguages(text string) []LanguageGuess {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minDetectRunes {
		return nil
	}
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	hits := make(map[string]int, len(stopwords))
	total := 0
	for _, tok := range tokens {
		for code, words := range stopwords {
			if words[tok] {
				hits[code]++
				total++
			}
		}
	}
	if total < minDetectHits {
		return nil
	}

	out := make([]LanguageGuess, 0, len(hits))
	for code, n := range hits {
		out = append(out, LanguageGuess{
			Code:        code,
			Name:        LanguageNames[code],
			Probability: math.Round(float64(n)/float64(total)*1000) / 10,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Probability != out[j].Probability {
			return out[i].Probability > out[j].Probability
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// DetectLanguage returns the most likely language code, or "" when the text is
// too short or no language clearly wins.
func DetectLanguage(text string) string {
	guesses := DetectLanguages(text)
	if len(guesses) == 0 {
		return ""
	}
	if len(guesses) > 1 && guesses[0].Probability == guesses[1].Probability {
		return ""
	}
	return guesses[0].Code
}

// #endregion detect
