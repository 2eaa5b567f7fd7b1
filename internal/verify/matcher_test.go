package verify

import (
	"strings"
	"testing"
)

func TestNewMatcher(t *testing.T) {
	for _, name := range []string{"", StrategyLevenshtein, StrategyTokenOverlap} {
		if _, err := NewMatcher(name); err != nil {
			t.Errorf("strategy %q: unexpected error %v", name, err)
		}
	}
	if _, err := NewMatcher("soundex"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestLevenshteinMatcher_BestWindow(t *testing.T) {
	page := strings.Fields("the system requires a minimum of 4gb ram")
	m := LevenshteinMatcher{}

	if got := m.BestMatch(strings.Fields("minimum of 4gb ram"), page); got != 1 {
		t.Errorf("expected identical window to score 1, got %f", got)
	}

	got := m.BestMatch(strings.Fields("minimum of 8gb ram"), page)
	if got < 0.85 || got >= 1 {
		t.Errorf("expected one-character difference to score in [0.85,1), got %f", got)
	}

	if got := m.BestMatch(nil, page); got != 0 {
		t.Errorf("expected empty quote to score 0, got %f", got)
	}
}

func TestLevenshteinMatcher_PageShorterThanQuote(t *testing.T) {
	got := LevenshteinMatcher{}.BestMatch(strings.Fields("a minimum of 4gb ram is needed"), strings.Fields("minimum of 4gb ram"))
	if got <= 0 || got >= 1 {
		t.Errorf("expected partial similarity against the whole page, got %f", got)
	}
}

func TestTokenOverlapMatcher_CountsMultiplicity(t *testing.T) {
	m := TokenOverlapMatcher{}
	quote := strings.Fields("press ok then press ok")
	page := strings.Fields("press ok to continue and then wait")

	got := m.BestMatch(quote, page)
	// Best 5-token window "press ok to continue and" holds press and ok once each.
	if got != 0.4 {
		t.Errorf("expected 0.4, got %f", got)
	}

	if got := m.BestMatch(strings.Fields("then wait"), page); got != 1 {
		t.Errorf("expected full overlap, got %f", got)
	}
}
