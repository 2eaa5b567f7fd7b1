package record

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicyStrict, false},
		{"strict", PolicyStrict, false},
		{"lenient", PolicyLenient, false},
		{"audit", PolicyAudit, false},
		{"STRICT", "", true},
		{"loose", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParsePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPolicyKeeps(t *testing.T) {
	statuses := []Status{StatusVerified, StatusPartialMatch, StatusPageMismatch, StatusQuoteNotFound}
	want := map[Policy][]bool{
		PolicyStrict:  {true, false, false, false},
		PolicyLenient: {true, true, false, false},
		PolicyAudit:   {true, true, true, true},
	}
	for p, keeps := range want {
		for i, s := range statuses {
			if got := p.Keeps(s); got != keeps[i] {
				t.Errorf("%s.Keeps(%s) = %v, want %v", p, s, got, keeps[i])
			}
		}
	}
}

func TestSummaryAccounting(t *testing.T) {
	var s Summary
	s.Total = 6
	s.Rejected = 1
	for _, st := range []Status{StatusVerified, StatusVerified, StatusPartialMatch, StatusPageMismatch, StatusQuoteNotFound} {
		s.Count(st)
	}
	if s.Accounted() != s.Total {
		t.Fatalf("expected accounted %d to equal total %d", s.Accounted(), s.Total)
	}

	var total Summary
	total.Merge(s)
	total.Merge(s)
	if total.Total != 12 || total.Verified != 4 || total.Rejected != 2 {
		t.Fatalf("unexpected merged summary: %+v", total)
	}
}

func TestVerifiedJSONFieldNames(t *testing.T) {
	v := Verified{
		Candidate: Candidate{
			Instruction: "How much RAM?",
			Output:      "4GB",
			PageNumber:  3,
			SourceQuote: "The system requires a minimum of 4GB RAM.",
		},
		Status:     StatusVerified,
		Similarity: 1,
	}
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(raw)
	for _, key := range []string{`"instruction"`, `"input"`, `"output"`, `"page_number":3`, `"source_quote"`, `"section"`, `"verification_status":"verified"`} {
		if !strings.Contains(s, key) {
			t.Errorf("missing %s in %s", key, s)
		}
	}
	for _, key := range []string{"confidence_score", "category", "found_on_page"} {
		if strings.Contains(s, key) {
			t.Errorf("unset optional field %s should be omitted: %s", key, s)
		}
	}
}

func TestCategoryValid(t *testing.T) {
	if !Category("").Valid() || !CategoryTroubleshooting.Valid() {
		t.Fatal("expected empty and known categories to be valid")
	}
	if Category("misc").Valid() {
		t.Fatal("expected unknown category to be invalid")
	}
}
