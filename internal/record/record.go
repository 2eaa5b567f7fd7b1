// Package record holds the types that flow through the verification pipeline.
package record

import (
	"errors"
	"fmt"
)

// Candidate is an unverified extraction proposed by a generator. Field names
// on the wire are a compatibility contract with downstream RAG tooling.
type Candidate struct {
	Instruction string   `json:"instruction"`
	Input       string   `json:"input"`
	Output      string   `json:"output"`
	PageNumber  int      `json:"page_number"`
	SourceQuote string   `json:"source_quote"`
	Section     string   `json:"section"`
	Confidence  *float64 `json:"confidence_score,omitempty"`
	Category    Category `json:"category,omitempty"`
}

// Category labels the kind of knowledge a candidate captures.
type Category string

const (
	CategoryOperationalLogic Category = "operational_logic"
	CategoryTroubleshooting  Category = "troubleshooting"
	CategoryUINavigation     Category = "ui_navigation"
	CategoryBusinessRules    Category = "business_rules"
)

// Categories lists every recognized category.
var Categories = []Category{
	CategoryOperationalLogic,
	CategoryTroubleshooting,
	CategoryUINavigation,
	CategoryBusinessRules,
}

// Valid reports whether c is empty or one of the recognized labels.
func (c Category) Valid() bool {
	if c == "" {
		return true
	}
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Status is the outcome of checking a candidate's citation.
type Status string

const (
	StatusVerified      Status = "verified"
	StatusPageMismatch  Status = "page_mismatch"
	StatusQuoteNotFound Status = "quote_not_found"
	StatusPartialMatch  Status = "partial_match"
)

// Verified is a Candidate with its verification outcome attached.
type Verified struct {
	Candidate
	Status     Status  `json:"verification_status"`
	Similarity float64 `json:"similarity"`
	// FoundOnPage is set when a quote that was not found on the claimed page
	// occurs verbatim on an adjacent page. It never changes Status.
	FoundOnPage int `json:"found_on_page,omitempty"`
}

// Rejection records a candidate that did not make it into the output.
type Rejection struct {
	Index     int       `json:"index"`
	Reasons   []string  `json:"reasons"`
	Status    Status    `json:"verification_status,omitempty"`
	Candidate Candidate `json:"candidate"`
}

// Summary counts what happened to every candidate of a batch.
// Total always equals Verified+Partial+Mismatched+NotFound+Rejected.
type Summary struct {
	Total      int `json:"total"`
	Verified   int `json:"verified"`
	Partial    int `json:"partial"`
	Mismatched int `json:"mismatched"`
	NotFound   int `json:"not_found"`
	Rejected   int `json:"rejected"`
	Filtered   int `json:"filtered"`
	Kept       int `json:"kept"`
}

// Count records one classified candidate.
func (s *Summary) Count(status Status) {
	switch status {
	case StatusVerified:
		s.Verified++
	case StatusPartialMatch:
		s.Partial++
	case StatusPageMismatch:
		s.Mismatched++
	case StatusQuoteNotFound:
		s.NotFound++
	}
}

// Accounted returns how many candidates the summary has a bucket for.
func (s Summary) Accounted() int {
	return s.Verified + s.Partial + s.Mismatched + s.NotFound + s.Rejected
}

// Merge adds other's counts into s.
func (s *Summary) Merge(other Summary) {
	s.Total += other.Total
	s.Verified += other.Verified
	s.Partial += other.Partial
	s.Mismatched += other.Mismatched
	s.NotFound += other.NotFound
	s.Rejected += other.Rejected
	s.Filtered += other.Filtered
	s.Kept += other.Kept
}

// ErrInvalidRecord marks a candidate that is structurally malformed. It is a
// caller error, never a verification outcome.
var ErrInvalidRecord = errors.New("invalid record")

// Policy decides which verified records are kept in the output.
type Policy string

const (
	// PolicyStrict keeps only verified records.
	PolicyStrict Policy = "strict"
	// PolicyLenient keeps verified and partially matched records.
	PolicyLenient Policy = "lenient"
	// PolicyAudit keeps everything; downstream filters on the status.
	PolicyAudit Policy = "audit"
)

// ParsePolicy maps a name to a Policy. The empty string selects strict.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case "":
		return PolicyStrict, nil
	case PolicyStrict, PolicyLenient, PolicyAudit:
		return p, nil
	default:
		return "", fmt.Errorf("unknown policy %q (want strict, lenient or audit)", s)
	}
}

// Keeps reports whether a record with status s survives the policy.
func (p Policy) Keeps(s Status) bool {
	switch p {
	case PolicyAudit:
		return true
	case PolicyLenient:
		return s == StatusVerified || s == StatusPartialMatch
	default:
		return s == StatusVerified
	}
}
