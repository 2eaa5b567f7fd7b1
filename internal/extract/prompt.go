package extract

import (
	"fmt"
	"strings"

	"github.com/dgallion1/citecheck/internal/pagetext"
)

const ExtractionPrompt = `You are an expert technical documentation analyst. Extract technical question/answer pairs from the document pages below.

Grounding rules:
- Use ONLY what is explicitly written on the pages. Never infer, assume or invent.
- Every pair MUST cite the page number shown in the "=== Page N ===" marker it came from.
- Every pair MUST include a verbatim quote copied from that page as evidence.

Cover these dimensions where the document supports them:
1. operational_logic: how to configure features, mappings and settings
2. troubleshooting: error messages, failure scenarios and resolution steps
3. ui_navigation: menu paths, button locations, screen transitions
4. business_rules: specific values, limits, calculations

Return a JSON object {"candidates": [...]} where each element has:
- "instruction": a clear technical question answered by the page (string)
- "input": context such as system version, screen or scenario (string, may be empty)
- "output": the step-by-step answer or explanation (string)
- "page_number": the page the answer comes from (integer)
- "source_quote": an exact snippet copied from that page, at least 10 words (string)
- "section": the heading of the section the quote is under (string)
- "category": one of "operational_logic", "troubleshooting", "ui_navigation", "business_rules"
- "confidence_score": how certain you are the quote supports the answer, 0.0 to 1.0

If a page holds nothing worth extracting, skip it. Prefer accuracy over quantity.
Respond with ONLY the JSON object, no other text.`

// BuildChunkPrompt creates the prompt for one chunk of consecutive pages.
// Each page is introduced by a marker carrying its physical page number so
// the generator can cite it.
func BuildChunkPrompt(docTitle string, pages []pagetext.Page) string {
	var sb strings.Builder
	sb.WriteString(ExtractionPrompt)
	sb.WriteString("\n\n---\n")
	fmt.Fprintf(&sb, "Document: %q\n", docTitle)
	sb.WriteString("---\n")
	for _, p := range pages {
		if p.Text == "" {
			continue
		}
		fmt.Fprintf(&sb, "\n=== Page %d ===\n%s\n", p.Number, p.Text)
	}
	return sb.String()
}
