package pagetext

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestKey_Normalization(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "minimum  of\n4GB\tRAM", "minimum of 4gb ram"},
		{"strips edge punctuation", `"The system requires RAM."`, "the system requires ram"},
		{"keeps inner punctuation", "Go to Settings > Offers, then save.", "go to settings > offers, then save"},
		{"folds curly quotes", "\u201cBlackout\u201d periods", "blackout\" periods"},
		{"folds dashes", "pre\u2013configured", "pre-configured"},
		{"expands ligatures", "con\ufb01guration", "configuration"},
		{"drops soft hyphens", "config\u00aduration", "configuration"},
		{"case folds", "STRASSE Straße", "strasse strasse"},
		{"empty", "   ", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Key(tc.in); got != tc.want {
				t.Errorf("Key(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestBuild_ContiguousPages(t *testing.T) {
	src := Texts{
		"Introduction\n\nWelcome   to the manual.",
		"",
		"The system requires a minimum of 4GB RAM.",
	}
	pm, err := Build(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pm.Len() != 3 {
		t.Fatalf("expected 3 pages, got %d", pm.Len())
	}
	if pm.TextPages() != 2 {
		t.Errorf("expected 2 pages with text, got %d", pm.TextPages())
	}

	for i, p := range pm.Pages() {
		if p.Number != i+1 {
			t.Errorf("page at %d has number %d", i, p.Number)
		}
	}

	p1, _ := pm.Page(1)
	if p1.Text != "Introduction Welcome to the manual." {
		t.Errorf("unexpected collapsed text %q", p1.Text)
	}
	p3, ok := pm.Page(3)
	if !ok {
		t.Fatal("expected page 3 to exist")
	}
	if p3.Folded != "the system requires a minimum of 4gb ram" {
		t.Errorf("unexpected folded text %q", p3.Folded)
	}
	if _, ok := pm.Page(0); ok {
		t.Error("expected page 0 to be out of range")
	}
	if _, ok := pm.Page(4); ok {
		t.Error("expected page 4 to be out of range")
	}
}

type flakySource struct{ Texts }

func (f flakySource) PageText(n int) (string, error) {
	if n == 2 {
		return "", errors.New("bad content stream")
	}
	return f.Texts.PageText(n)
}

func TestBuild_UnreadablePageKeepsNumbering(t *testing.T) {
	pm, err := Build(flakySource{Texts{"one", "two", "three"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pm.Len() != 3 {
		t.Fatalf("expected 3 pages, got %d", pm.Len())
	}
	p2, _ := pm.Page(2)
	if p2.Text != "" {
		t.Errorf("expected empty text for unreadable page, got %q", p2.Text)
	}
	p3, _ := pm.Page(3)
	if p3.Text != "three" {
		t.Errorf("expected page 3 text %q, got %q", "three", p3.Text)
	}
}

func TestBuild_NoTextLayer(t *testing.T) {
	_, err := Build(Texts{"", "  \n ", "\f"})
	if !errors.Is(err, ErrUnreadablePDF) {
		t.Fatalf("expected ErrUnreadablePDF, got %v", err)
	}
	_, err = Build(Texts{})
	if !errors.Is(err, ErrUnreadablePDF) {
		t.Fatalf("expected ErrUnreadablePDF for zero pages, got %v", err)
	}
}

func TestPageMap_JSONRejectsGaps(t *testing.T) {
	var pm PageMap
	err := json.Unmarshal([]byte(`[{"number":1,"text":"a","folded":"a"},{"number":3,"text":"c","folded":"c"}]`), &pm)
	if err == nil {
		t.Fatal("expected error for non-contiguous pages")
	}
}

func TestSplitFormFeeds(t *testing.T) {
	pages := splitFormFeeds("page one\fpage two\f")
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[1] != "page two" {
		t.Errorf("expected %q, got %q", "page two", pages[1])
	}
}
