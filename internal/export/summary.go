package export

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dgallion1/citecheck/internal/record"
)

// WriteSummary renders the counts of a run as an aligned table.
func WriteSummary(w io.Writer, title string, s record.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\n", title)
	rows := []struct {
		label string
		n     int
	}{
		{"total candidates", s.Total},
		{"verified", s.Verified},
		{"partial match", s.Partial},
		{"page mismatch", s.Mismatched},
		{"quote not found", s.NotFound},
		{"rejected", s.Rejected},
		{"filtered by policy", s.Filtered},
		{"kept", s.Kept},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "  %s\t%d\t%s\n", r.label, r.n, percent(r.n, s.Total))
	}
	return tw.Flush()
}

func percent(n, total int) string {
	if total == 0 {
		return ""
	}
	return fmt.Sprintf("%.1f%%", 100*float64(n)/float64(total))
}

// SummaryLine is a one-line form of s for logs and progress output.
func SummaryLine(s record.Summary) string {
	return fmt.Sprintf("total=%d verified=%d partial=%d mismatched=%d not_found=%d rejected=%d kept=%d",
		s.Total, s.Verified, s.Partial, s.Mismatched, s.NotFound, s.Rejected, s.Kept)
}
