// Package candidates implements the per-stage Generator protocol and the
// shared distinctness/realism/shape enforcement that wraps every
// generator's raw output (spec.md §4.7), grounded on
// generators/diversity.py and generators/utils.py in the original source.
package candidates

import (
	"strings"
	"unicode"
)

// normalizeText lowercases text and strips everything but word characters
// and CJK ideographs, matching generators/diversity.py::normalize_text.
func normalizeText(text string) string {
	if text == "" {
		return ""
	}
	lowered := strings.ToLower(text)
	var sb strings.Builder
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || isCJK(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func isCJK(r rune) bool {
	return r >= 0x4e00 && r <= 0x9fff
}

func ngrams(text string, n int) map[string]bool {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= n {
		return map[string]bool{text: true}
	}
	grams := make(map[string]bool, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		grams[string(runes[i:i+n])] = true
	}
	return grams
}

// Similarity returns the character 3-gram Jaccard similarity between a and
// b, in [0, 1].
func Similarity(a, b string) float64 {
	normA := normalizeText(a)
	normB := normalizeText(b)
	if normA == "" || normB == "" {
		return 0
	}
	gramsA := ngrams(normA, 3)
	gramsB := ngrams(normB, 3)
	if len(gramsA) == 0 || len(gramsB) == 0 {
		return 0
	}
	intersection := 0
	for g := range gramsA {
		if gramsB[g] {
			intersection++
		}
	}
	union := len(gramsA) + len(gramsB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

const duplicateThreshold = 0.85

// IsDuplicate reports whether text is empty (treated as an unusable
// duplicate) or similarity ≥ 0.85 against any entry in seen.
func IsDuplicate(text string, seen []string) bool {
	if normalizeText(text) == "" {
		return true
	}
	for _, existing := range seen {
		if Similarity(text, existing) >= duplicateThreshold {
			return true
		}
	}
	return false
}
