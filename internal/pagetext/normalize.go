package pagetext

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// typography maps characters PDF text layers commonly use in place of their
// ASCII equivalents. NFKC already handles ligatures and full-width forms.
var typography = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'", "\u201a", "'", "\u201b", "'",
	"\u201c", `"`, "\u201d", `"`, "\u201e", `"`, "\u201f", `"`,
	"\u2010", "-", "\u2011", "-", "\u2012", "-", "\u2013", "-", "\u2014", "-", "\u2212", "-",
	"\u00ad", "",
)

// CollapseSpace replaces every run of whitespace with a single space and
// trims the ends.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Key returns the comparison form of s: NFKC, typographic punctuation folded
// to ASCII, whitespace collapsed, leading and trailing punctuation stripped,
// case folded. Quotes and page text must go through the same function.
func Key(s string) string {
	s = norm.NFKC.String(s)
	s = typography.Replace(s)
	s = CollapseSpace(s)
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	// cases.Caser keeps state, so one per call.
	return cases.Fold().String(s)
}

// Tokens splits a Key-normalized string into words.
func Tokens(s string) []string {
	return strings.Fields(s)
}
