package pagetext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// FromPDF opens a PDF held in memory and builds its PageMap.
func FromPDF(data []byte) (PageMap, error) {
	if len(data) == 0 {
		return PageMap{}, fmt.Errorf("empty pdf content")
	}
	src, err := openPDF(data)
	if err != nil {
		return PageMap{}, err
	}
	return Build(src)
}

func openPDF(data []byte) (src *pdfSource, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("open pdf: %v", r)
		}
	}()
	r, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &pdfSource{r: r}, nil
}

type pdfSource struct {
	r *pdflib.Reader
}

func (s *pdfSource) NumPage() int {
	return s.r.NumPage()
}

func (s *pdfSource) PageText(n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", n, r)
		}
	}()
	page := s.r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// FromPdftotext runs the poppler pdftotext binary over the PDF and splits
// its output on form feeds, one per page.
func FromPdftotext(ctx context.Context, data []byte) (PageMap, error) {
	tmp, err := os.CreateTemp("", "citecheck-pdf-*.pdf")
	if err != nil {
		return PageMap{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return PageMap{}, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	cmd := exec.CommandContext(ctx, "pdftotext", "-layout", tmpPath, "-")
	out, err := cmd.Output()
	if err != nil {
		return PageMap{}, fmt.Errorf("pdftotext: %w", err)
	}
	return Build(splitFormFeeds(string(out)))
}

// splitFormFeeds splits pdftotext output into pages. pdftotext terminates
// every page, including the last, with a form feed.
func splitFormFeeds(text string) Texts {
	pages := strings.Split(text, "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return Texts(pages)
}

// isUnreadable reports whether err means the document has no text layer,
// as opposed to a failure to parse it at all.
func isUnreadable(err error) bool {
	return errors.Is(err, ErrUnreadablePDF)
}
