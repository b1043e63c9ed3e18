package titles

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"animelink/internal/textutil"
)

// SynonymPenalty is added to a synonym's distance; synonyms are less
// authoritative than the primary titles.
const SynonymPenalty = 2

// DefaultMatchThreshold is the normalized distance accepted by Matches.
const DefaultMatchThreshold = 0.3

// Titled is anything with catalog title fields.
type Titled interface {
	// TitleFields returns the populated primary title variants.
	TitleFields() []string
	SynonymList() []string
}

// Score is the minimum case-insensitive edit distance between query and any
// title field, or any synonym plus SynonymPenalty. It is math.MaxInt when
// the entry has no titles.
func Score(t Titled, query string) int {
	q := textutil.Lower(query)
	best := math.MaxInt
	for _, title := range t.TitleFields() {
		if title == "" {
			continue
		}
		best = min(best, levenshtein.ComputeDistance(textutil.Lower(title), q))
	}
	for _, syn := range t.SynonymList() {
		if syn == "" {
			continue
		}
		best = min(best, levenshtein.ComputeDistance(textutil.Lower(syn), q)+SynonymPenalty)
	}
	return best
}

// Best returns the item with the lowest Score. Ties keep the first.
func Best[T Titled](items []T, query string) (best T, score int, ok bool) {
	score = math.MaxInt
	for _, item := range items {
		s := Score(item, query)
		if !ok || s < score {
			best, score, ok = item, s, true
		}
	}
	return best, score, ok
}

// Matches reports whether phrase plausibly names t: one title contains the
// other, or their normalized edit distance is within threshold. An empty
// phrase always matches.
func Matches(t Titled, phrase string, threshold float64) bool {
	p := textutil.Lower(strings.TrimSpace(phrase))
	if p == "" {
		return true
	}
	for _, title := range t.TitleFields() {
		v := textutil.Lower(strings.TrimSpace(title))
		if v == "" {
			continue
		}
		if strings.Contains(v, p) || strings.Contains(p, v) {
			return true
		}
		if NormalizedDistance(v, p) <= threshold {
			return true
		}
	}
	return false
}

// NormalizedDistance is the edit distance divided by the longer length.
func NormalizedDistance(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 0
	}
	return float64(levenshtein.ComputeDistance(a, b)) / float64(longest)
}
