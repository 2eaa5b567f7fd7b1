// Package pagetext builds the per-page text index quotes are verified against.
package pagetext

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnreadablePDF means no page of the document has an extractable text
// layer, typically a scanned image-only PDF.
var ErrUnreadablePDF = errors.New("unreadable pdf: no extractable text layer")

// Page is one page's text. Text keeps case with whitespace collapsed; Folded
// is the Key form used for matching.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
	Folded string `json:"folded"`
}

// PageMap maps 1-based page numbers to page text. Page numbers are
// contiguous from 1 to the physical page count. A PageMap is never mutated
// after Build returns, so it is safe to share across goroutines.
type PageMap struct {
	pages []Page
}

// Len returns the physical page count.
func (m PageMap) Len() int {
	return len(m.pages)
}

// Page returns page n and whether it exists.
func (m PageMap) Page(n int) (Page, bool) {
	if n < 1 || n > len(m.pages) {
		return Page{}, false
	}
	return m.pages[n-1], true
}

// Pages returns a copy of all pages in order.
func (m PageMap) Pages() []Page {
	out := make([]Page, len(m.pages))
	copy(out, m.pages)
	return out
}

// TextPages counts pages that carry any text.
func (m PageMap) TextPages() int {
	n := 0
	for _, p := range m.pages {
		if p.Text != "" {
			n++
		}
	}
	return n
}

func (m PageMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.pages)
}

func (m *PageMap) UnmarshalJSON(data []byte) error {
	var pages []Page
	if err := json.Unmarshal(data, &pages); err != nil {
		return err
	}
	for i, p := range pages {
		if p.Number != i+1 {
			return fmt.Errorf("page %d out of sequence at position %d", p.Number, i+1)
		}
	}
	m.pages = pages
	return nil
}

// PageSource exposes a document's raw page text.
type PageSource interface {
	NumPage() int
	PageText(n int) (string, error)
}

// Build reads every page of src into a PageMap. Pages whose text cannot be
// read are kept with empty text so numbering stays aligned with the
// physical document. It fails with ErrUnreadablePDF when no page has text.
func Build(src PageSource) (PageMap, error) {
	n := src.NumPage()
	pages := make([]Page, 0, n)
	withText := 0

	for i := 1; i <= n; i++ {
		raw, err := src.PageText(i)
		if err != nil {
			raw = ""
		}
		text := CollapseSpace(raw)
		if text != "" {
			withText++
		}
		pages = append(pages, Page{
			Number: i,
			Text:   text,
			Folded: Key(text),
		})
	}

	if withText == 0 {
		return PageMap{}, ErrUnreadablePDF
	}
	return PageMap{pages: pages}, nil
}

// Texts is a PageSource over in-memory page strings; index 0 is page 1.
type Texts []string

func (t Texts) NumPage() int {
	return len(t)
}

func (t Texts) PageText(n int) (string, error) {
	if n < 1 || n > len(t) {
		return "", fmt.Errorf("page %d out of range", n)
	}
	return t[n-1], nil
}
