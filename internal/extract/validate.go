package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/citecheck/internal/record"
)

// Rules are the structural checks a candidate must pass before verification.
type Rules struct {
	MinQuoteLength int
	// RequireSection rejects candidates without a section label.
	RequireSection bool
	// RejectInjection rejects candidates whose instruction or output reads
	// like an attempt to steer a downstream model.
	RejectInjection bool
}

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|` +
		`new\s+instructions)`,
)

// ValidateCandidate returns every structural problem with c. An empty result
// means c may be verified. Text fields are trimmed in place.
func ValidateCandidate(c *record.Candidate, rules Rules) []string {
	if c == nil {
		return []string{"candidate is null"}
	}
	minQuote := rules.MinQuoteLength
	if minQuote <= 0 {
		minQuote = 10
	}

	c.Instruction = strings.TrimSpace(c.Instruction)
	c.Output = strings.TrimSpace(c.Output)
	c.SourceQuote = strings.TrimSpace(c.SourceQuote)
	c.Section = strings.TrimSpace(c.Section)

	var reasons []string
	if c.Instruction == "" {
		reasons = append(reasons, "instruction is empty")
	}
	if c.Output == "" {
		reasons = append(reasons, "output is empty")
	}
	if c.PageNumber <= 0 {
		reasons = append(reasons, "page_number missing or not positive")
	}
	if n := utf8.RuneCountInString(c.SourceQuote); n == 0 {
		reasons = append(reasons, "source_quote missing")
	} else if n < minQuote {
		reasons = append(reasons, fmt.Sprintf("source_quote shorter than %d characters", minQuote))
	}
	if rules.RequireSection && c.Section == "" {
		reasons = append(reasons, "section missing")
	}
	if c.Confidence != nil && (*c.Confidence < 0 || *c.Confidence > 1) {
		reasons = append(reasons, "confidence_score outside [0,1]")
	}
	if !c.Category.Valid() {
		reasons = append(reasons, fmt.Sprintf("unknown category %q", c.Category))
	}
	if rules.RejectInjection && (injectionPattern.MatchString(c.Instruction) || injectionPattern.MatchString(c.Output)) {
		reasons = append(reasons, "prompt injection pattern in instruction or output")
	}
	return reasons
}
