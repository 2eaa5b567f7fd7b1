package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/dgallion1/citecheck/internal/extract"
	"github.com/dgallion1/citecheck/internal/pagetext"
	"github.com/dgallion1/citecheck/internal/record"
	"github.com/dgallion1/citecheck/internal/verify"
	"golang.org/x/sync/errgroup"
)

// maxWarnings caps how many rejected entries are itemised per document.
const maxWarnings = 5

// Options configure a Pipeline.
type Options struct {
	Policy         record.Policy
	RequireSection bool
	// RejectInjection turns on the prompt-injection wording check.
	RejectInjection bool
	// Concurrency bounds parallel verification. Zero uses GOMAXPROCS.
	Concurrency int
}

// Pipeline verifies batches of candidates against a document's pages and
// applies the acceptance policy.
type Pipeline struct {
	indexer  *pagetext.Indexer
	verifier *verify.Verifier
	policy   record.Policy
	rules    extract.Rules
	workers  int
	log      *slog.Logger

	gen *generation
}

func New(indexer *pagetext.Indexer, verifier *verify.Verifier, opts Options, log *slog.Logger) *Pipeline {
	if opts.Policy == "" {
		opts.Policy = record.PolicyStrict
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		indexer:  indexer,
		verifier: verifier,
		policy:   opts.Policy,
		rules: extract.Rules{
			MinQuoteLength:  verifier.MinQuoteLength(),
			RequireSection:  opts.RequireSection,
			RejectInjection: opts.RejectInjection,
		},
		workers: opts.Concurrency,
		log:     log,
	}
}

// WithPolicy returns a copy of p that applies policy instead.
func (p *Pipeline) WithPolicy(policy record.Policy) *Pipeline {
	cp := *p
	cp.policy = policy
	return &cp
}

// Policy returns the acceptance policy in effect.
func (p *Pipeline) Policy() record.Policy { return p.policy }

// Result is the outcome of processing one document's candidates.
type Result struct {
	Pages int `json:"pages"`
	// Records are the kept records in input order.
	Records    []record.Verified  `json:"records"`
	Rejections []record.Rejection `json:"rejections"`
	Summary    record.Summary     `json:"summary"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// Process indexes pdf and verifies candidates against it. It fails only when
// the document itself cannot be indexed (for example pagetext.ErrUnreadablePDF).
func (p *Pipeline) Process(ctx context.Context, pdf []byte, candidates []record.Candidate) (*Result, error) {
	pages, err := p.Index(ctx, pdf)
	if err != nil {
		return nil, err
	}
	return p.ProcessPages(ctx, pages, candidates)
}

// Index builds the page map for pdf.
func (p *Pipeline) Index(ctx context.Context, pdf []byte) (pagetext.PageMap, error) {
	pages, err := p.indexer.Index(ctx, pdf)
	if err != nil {
		return pagetext.PageMap{}, fmt.Errorf("index pdf: %w", err)
	}
	return pages, nil
}

// ProcessPages verifies candidates against an already built page map.
func (p *Pipeline) ProcessPages(ctx context.Context, pages pagetext.PageMap, candidates []record.Candidate) (*Result, error) {
	return p.ProcessDecoded(ctx, pages, extract.Wrap(candidates))
}

type outcome struct {
	reasons []string
	res     verify.Result
	checked bool
}

// ProcessDecoded is ProcessPages for candidates that may carry decoding
// problems. Records with problems are rejected without verification.
func (p *Pipeline) ProcessDecoded(ctx context.Context, pages pagetext.PageMap, decoded []extract.Decoded) (*Result, error) {
	cands := make([]record.Candidate, len(decoded))
	slots := make([]outcome, len(decoded))
	for i, d := range decoded {
		cands[i] = d.Candidate
		slots[i].reasons = append(slots[i].reasons, d.Problems...)
		slots[i].reasons = append(slots[i].reasons, extract.ValidateCandidate(&cands[i], p.rules)...)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range cands {
		if len(slots[i].reasons) > 0 {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := p.verifier.Verify(cands[i], pages)
			if err != nil {
				// Only record-level errors come back from Verify.
				slots[i].reasons = []string{err.Error()}
				return nil
			}
			slots[i].res = res
			slots[i].checked = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Result{
		Pages:      pages.Len(),
		Records:    []record.Verified{},
		Rejections: []record.Rejection{},
	}
	out.Summary.Total = len(cands)
	for i, s := range slots {
		if !s.checked {
			out.Summary.Rejected++
			out.Rejections = append(out.Rejections, record.Rejection{
				Index:     i,
				Reasons:   s.reasons,
				Candidate: cands[i],
			})
			continue
		}

		out.Summary.Count(s.res.Status)
		v := record.Verified{
			Candidate:   cands[i],
			Status:      s.res.Status,
			Similarity:  s.res.Similarity,
			FoundOnPage: s.res.FoundOnPage,
		}
		if p.policy.Keeps(v.Status) {
			out.Records = append(out.Records, v)
			continue
		}
		out.Summary.Filtered++
		out.Rejections = append(out.Rejections, record.Rejection{
			Index:     i,
			Reasons:   []string{fmt.Sprintf("%s dropped by %s policy", v.Status, p.policy)},
			Status:    v.Status,
			Candidate: cands[i],
		})
	}
	out.Summary.Kept = len(out.Records)
	out.Warnings = warnings(out.Rejections)

	p.log.Debug("verified batch",
		"total", out.Summary.Total,
		"verified", out.Summary.Verified,
		"partial", out.Summary.Partial,
		"mismatched", out.Summary.Mismatched,
		"not_found", out.Summary.NotFound,
		"rejected", out.Summary.Rejected,
		"kept", out.Summary.Kept,
	)
	return out, nil
}

func warnings(rejections []record.Rejection) []string {
	var out []string
	for _, r := range rejections {
		if len(out) == maxWarnings {
			out = append(out, fmt.Sprintf("... and %d more", len(rejections)-maxWarnings))
			break
		}
		out = append(out, fmt.Sprintf("entry %d: %s", r.Index, strings.Join(r.Reasons, "; ")))
	}
	return out
}
