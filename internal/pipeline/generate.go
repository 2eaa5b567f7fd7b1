package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgallion1/citecheck/internal/chunker"
	"github.com/dgallion1/citecheck/internal/extract"
	"github.com/dgallion1/citecheck/internal/pagetext"
	"golang.org/x/sync/errgroup"
)

// ErrNoGenerator is returned when candidates must be generated but the
// pipeline was built without a generator.
var ErrNoGenerator = errors.New("no candidate generator configured")

type generation struct {
	gen         extract.Generator
	chunks      chunker.Config
	concurrency int
}

// WithGenerator returns a copy of p that can propose candidates with g.
func (p *Pipeline) WithGenerator(g extract.Generator, chunks chunker.Config, concurrency int) *Pipeline {
	if concurrency <= 0 {
		concurrency = 1
	}
	cp := *p
	cp.gen = &generation{gen: g, chunks: chunks, concurrency: concurrency}
	return &cp
}

// Generator returns the configured generator, or nil.
func (p *Pipeline) Generator() extract.Generator {
	if p.gen == nil {
		return nil
	}
	return p.gen.gen
}

// Generated holds the candidates proposed for one document.
type Generated struct {
	Candidates []extract.Decoded
	Chunks     int
	// Failures lists chunks whose generation failed after retries.
	Failures []string
}

// Generate splits pages into chunks and asks the generator for candidates
// from each. Chunks fail independently; an error is returned only when the
// context ends or every chunk failed. Candidates keep chunk order.
// onChunk, if set, is called after each chunk with the number completed.
func (p *Pipeline) Generate(ctx context.Context, title string, pages pagetext.PageMap, onChunk func(done, total int)) (*Generated, error) {
	if p.gen == nil {
		return nil, ErrNoGenerator
	}
	chunks := chunker.ChunkPages(pages.Pages(), p.gen.chunks)
	out := &Generated{Chunks: len(chunks)}
	if len(chunks) == 0 {
		return out, nil
	}

	log := p.log.With("generator", p.gen.gen.Name(), "model", p.gen.gen.Model())
	perChunk := make([][]extract.Decoded, len(chunks))
	errs := make([]error, len(chunks))
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.gen.concurrency)
	for i, c := range chunks {
		g.Go(func() error {
			prompt := extract.BuildChunkPrompt(title, c.Pages)
			got, err := extractWithRetry(gctx, p.gen.gen, prompt, log)
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			perChunk[i], errs[i] = got, err
			if onChunk != nil {
				mu.Lock()
				done++
				onChunk(done, len(chunks))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, c := range chunks {
		if errs[i] != nil {
			log.Error("generation failed", "chunk", i, "pages", fmt.Sprintf("%d-%d", c.PageStart(), c.PageEnd()), "error", errs[i])
			out.Failures = append(out.Failures, fmt.Sprintf("chunk %d (pages %d-%d): %s", i, c.PageStart(), c.PageEnd(), errs[i]))
			continue
		}
		out.Candidates = append(out.Candidates, perChunk[i]...)
	}
	if len(out.Failures) == len(chunks) {
		return out, fmt.Errorf("generation failed for all %d chunks: %w", len(chunks), errs[0])
	}
	return out, nil
}
