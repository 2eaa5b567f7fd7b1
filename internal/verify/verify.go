// Package verify checks that a candidate's cited quote appears on the page it
// claims. Verification is a pure function of the candidate and the page map,
// so one Verifier can be shared by any number of goroutines.
package verify

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/citecheck/internal/pagetext"
	"github.com/dgallion1/citecheck/internal/record"
)

const (
	DefaultThreshold      = 0.85
	DefaultMinQuoteLength = 10
)

// Config tunes verification. Zero values select the defaults.
type Config struct {
	// Threshold is the minimum fuzzy similarity for a partial match.
	Threshold float64
	// MinQuoteLength is counted in runes after trimming.
	MinQuoteLength int
	Matcher        Matcher
}

// Result is the outcome of one verification.
type Result struct {
	Status     record.Status
	Similarity float64
	// FoundOnPage is the nearest other page holding the quote verbatim, or 0.
	FoundOnPage int
}

// Verifier classifies citations against a page map.
type Verifier struct {
	threshold float64
	minQuote  int
	matcher   Matcher
}

// New builds a Verifier. A zero Threshold or MinQuoteLength selects the
// default; any other value outside its range is an error.
func New(cfg Config) (*Verifier, error) {
	switch {
	case cfg.Threshold == 0:
		cfg.Threshold = DefaultThreshold
	case cfg.Threshold < 0 || cfg.Threshold > 1:
		return nil, fmt.Errorf("threshold must be in (0,1], got %v", cfg.Threshold)
	}
	switch {
	case cfg.MinQuoteLength == 0:
		cfg.MinQuoteLength = DefaultMinQuoteLength
	case cfg.MinQuoteLength < 0:
		return nil, fmt.Errorf("min quote length must be positive, got %d", cfg.MinQuoteLength)
	}
	if cfg.Matcher == nil {
		cfg.Matcher = LevenshteinMatcher{}
	}
	return &Verifier{
		threshold: cfg.Threshold,
		minQuote:  cfg.MinQuoteLength,
		matcher:   cfg.Matcher,
	}, nil
}

// Threshold returns the effective partial-match threshold.
func (v *Verifier) Threshold() float64 { return v.threshold }

// MinQuoteLength returns the effective minimum quote length.
func (v *Verifier) MinQuoteLength() int { return v.minQuote }

// Verify classifies c against pages:
//
//   - verified: the normalized quote is a substring of the claimed page
//   - partial_match: the best fuzzy window on the claimed page reaches the threshold
//   - page_mismatch: the claimed page does not exist, or the quote appears
//     verbatim only on a page that is not adjacent to the claimed one
//   - quote_not_found: anything else, including a verbatim hit on page ±1
//
// A quote shorter than the minimum length fails with record.ErrInvalidRecord.
func (v *Verifier) Verify(c record.Candidate, pages pagetext.PageMap) (Result, error) {
	if n := utf8.RuneCountInString(strings.TrimSpace(c.SourceQuote)); n < v.minQuote {
		return Result{}, fmt.Errorf("%w: source_quote has %d characters, need %d", record.ErrInvalidRecord, n, v.minQuote)
	}
	quote := pagetext.Key(c.SourceQuote)
	if quote == "" {
		return Result{}, fmt.Errorf("%w: source_quote has no matchable text", record.ErrInvalidRecord)
	}

	page, ok := pages.Page(c.PageNumber)
	if !ok {
		return Result{Status: record.StatusPageMismatch}, nil
	}

	if strings.Contains(page.Folded, quote) {
		return Result{Status: record.StatusVerified, Similarity: 1}, nil
	}

	score := v.matcher.BestMatch(pagetext.Tokens(quote), pagetext.Tokens(page.Folded))
	if score >= v.threshold {
		return Result{Status: record.StatusPartialMatch, Similarity: score}, nil
	}

	res := Result{Status: record.StatusQuoteNotFound, Similarity: score}
	if other := nearestExact(quote, c.PageNumber, pages); other != 0 {
		res.FoundOnPage = other
		if abs(other-c.PageNumber) > 1 {
			res.Status = record.StatusPageMismatch
		}
	}
	return res, nil
}

// nearestExact returns the page closest to claimed, other than claimed
// itself, whose text contains quote. Ties prefer the earlier page.
func nearestExact(quote string, claimed int, pages pagetext.PageMap) int {
	for d := 1; d < pages.Len(); d++ {
		for _, n := range [2]int{claimed - d, claimed + d} {
			if p, ok := pages.Page(n); ok && strings.Contains(p.Folded, quote) {
				return n
			}
		}
	}
	return 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
