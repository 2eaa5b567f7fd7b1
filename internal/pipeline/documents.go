package pipeline

import (
	"context"
	"fmt"

	"github.com/dgallion1/citecheck/internal/extract"
	"github.com/dgallion1/citecheck/internal/record"
)

// Document is one PDF in a multi-document run.
type Document struct {
	Name string
	// Open returns the PDF bytes. It is called when the document's turn comes.
	Open func() ([]byte, error)
	// Candidates are verified as given. When nil the pipeline's generator
	// proposes them.
	Candidates []extract.Decoded
}

// BytesDocument wraps in-memory PDF bytes as a Document.
func BytesDocument(name string, data []byte, candidates []extract.Decoded) Document {
	return Document{
		Name:       name,
		Open:       func() ([]byte, error) { return data, nil },
		Candidates: candidates,
	}
}

// DocumentResult is the outcome for one document. Exactly one of Result and
// Err is set.
type DocumentResult struct {
	Name   string  `json:"name"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
	Error  string  `json:"error,omitempty"`
}

// BatchResult aggregates a multi-document run.
type BatchResult struct {
	Documents []DocumentResult `json:"documents"`
	Summary   record.Summary   `json:"summary"`
	Failed    int              `json:"failed_documents"`
}

// RunDocument indexes one document, generates candidates if it has none,
// and verifies them.
func (p *Pipeline) RunDocument(ctx context.Context, doc Document) (*Result, error) {
	data, err := doc.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", doc.Name, err)
	}
	pages, err := p.Index(ctx, data)
	if err != nil {
		return nil, err
	}

	decoded := doc.Candidates
	var failures []string
	if decoded == nil {
		gen, err := p.Generate(ctx, doc.Name, pages, nil)
		if err != nil {
			return nil, err
		}
		decoded, failures = gen.Candidates, gen.Failures
	}

	res, err := p.ProcessDecoded(ctx, pages, decoded)
	if err != nil {
		return nil, err
	}
	res.Warnings = append(failures, res.Warnings...)
	return res, nil
}

// ProcessDocuments runs every document in order. A document that fails,
// including one with no text layer, is reported in its DocumentResult and
// the run continues. emit, if set, receives each result as soon as it is
// ready; an emit error stops the run.
func (p *Pipeline) ProcessDocuments(ctx context.Context, docs []Document, emit func(DocumentResult) error) (*BatchResult, error) {
	batch := &BatchResult{Documents: make([]DocumentResult, 0, len(docs))}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		log := p.log.With("document", doc.Name)

		dr := DocumentResult{Name: doc.Name}
		res, err := p.RunDocument(ctx, doc)
		switch {
		case err != nil && ctx.Err() != nil:
			return batch, ctx.Err()
		case err != nil:
			log.Warn("document skipped", "error", err)
			dr.Err, dr.Error = err, err.Error()
			batch.Failed++
		default:
			log.Info("document processed", "pages", res.Pages, "kept", res.Summary.Kept, "total", res.Summary.Total)
			dr.Result = res
			batch.Summary.Merge(res.Summary)
		}
		batch.Documents = append(batch.Documents, dr)

		if emit != nil {
			if err := emit(dr); err != nil {
				return batch, err
			}
		}
	}
	return batch, nil
}
