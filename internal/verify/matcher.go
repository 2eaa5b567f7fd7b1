package verify

import (
	"fmt"
	"strings"

	"github.com/agext/levenshtein"
)

// Matcher scores how closely a quote appears in page text. Both inputs are
// tokens of pagetext.Key output. The score is the best similarity in [0,1]
// over windows of the page with the quote's token length.
type Matcher interface {
	Name() string
	BestMatch(quote, page []string) float64
}

const (
	StrategyLevenshtein  = "levenshtein"
	StrategyTokenOverlap = "token-overlap"
)

// NewMatcher returns the matcher registered under name.
func NewMatcher(name string) (Matcher, error) {
	switch name {
	case "", StrategyLevenshtein:
		return LevenshteinMatcher{}, nil
	case StrategyTokenOverlap:
		return TokenOverlapMatcher{}, nil
	default:
		return nil, fmt.Errorf("unknown fuzzy strategy %q", name)
	}
}

// LevenshteinMatcher scores windows by normalized edit-distance similarity
// over runes.
type LevenshteinMatcher struct{}

func (LevenshteinMatcher) Name() string { return StrategyLevenshtein }

func (LevenshteinMatcher) BestMatch(quote, page []string) float64 {
	if len(quote) == 0 || len(page) == 0 {
		return 0
	}
	q := strings.Join(quote, " ")
	if len(page) <= len(quote) {
		return levenshtein.Similarity(q, strings.Join(page, " "), nil)
	}

	best := 0.0
	for i := 0; i+len(quote) <= len(page); i++ {
		window := strings.Join(page[i:i+len(quote)], " ")
		if s := levenshtein.Similarity(q, window, nil); s > best {
			best = s
			if best == 1 {
				break
			}
		}
	}
	return best
}

// TokenOverlapMatcher scores windows by the fraction of quote tokens (with
// multiplicity) present in the window, ignoring order.
type TokenOverlapMatcher struct{}

func (TokenOverlapMatcher) Name() string { return StrategyTokenOverlap }

func (TokenOverlapMatcher) BestMatch(quote, page []string) float64 {
	if len(quote) == 0 || len(page) == 0 {
		return 0
	}
	need := make(map[string]int, len(quote))
	for _, tok := range quote {
		need[tok]++
	}

	width := len(quote)
	if width > len(page) {
		width = len(page)
	}

	have := make(map[string]int, width)
	overlap := 0
	add := func(tok string) {
		have[tok]++
		if have[tok] <= need[tok] {
			overlap++
		}
	}
	remove := func(tok string) {
		if have[tok] <= need[tok] {
			overlap--
		}
		have[tok]--
	}

	for _, tok := range page[:width] {
		add(tok)
	}
	best := overlap
	for i := width; i < len(page) && best < len(quote); i++ {
		remove(page[i-width])
		add(page[i])
		if overlap > best {
			best = overlap
		}
	}
	return float64(best) / float64(len(quote))
}
