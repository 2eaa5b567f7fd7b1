package pipeline

import (
	"context"
	"log/slog"
)

// Worker processes a single document job.
type Worker struct {
	pipeline *Pipeline
	log      *slog.Logger
}

func NewWorker(p *Pipeline, log *slog.Logger) *Worker {
	return &Worker{pipeline: p, log: log}
}

// Process indexes the job's PDF, generates candidates when none were
// supplied, and verifies them.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	p := w.pipeline
	if job.Policy != "" {
		p = p.WithPolicy(job.Policy)
	}

	// Phase 1: Index
	job.SetStatus(StatusIndexing, "indexing")
	pages, err := p.Index(ctx, job.FileData())
	if err != nil {
		log.Error("index failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "indexing")
		return
	}
	job.SetPages(pages.Len())
	log.Info("indexed document", "pages", pages.Len(), "text_pages", pages.TextPages())

	// Phase 2: Generate
	decoded := job.Candidates()
	hadErrors := false
	if decoded == nil {
		job.SetStatus(StatusGenerating, "generating")
		gen, err := p.Generate(ctx, job.Title, pages, job.SetChunks)
		if err != nil {
			log.Error("generation failed", "error", err)
			job.AddError(err.Error())
			job.SetStatus(StatusFailed, "generating")
			return
		}
		for _, f := range gen.Failures {
			job.AddError(f)
		}
		hadErrors = len(gen.Failures) > 0
		decoded = gen.Candidates
		log.Info("generated candidates", "candidates", len(decoded), "chunks", gen.Chunks, "failed_chunks", len(gen.Failures))
	}
	job.SetCandidateCount(len(decoded))

	// Phase 3: Verify
	job.SetStatus(StatusVerifying, "verifying")
	res, err := p.ProcessDecoded(ctx, pages, decoded)
	if err != nil {
		log.Error("verification failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "verifying")
		return
	}
	job.SetResult(res)
	log.Info("verification complete",
		"total", res.Summary.Total,
		"verified", res.Summary.Verified,
		"partial", res.Summary.Partial,
		"mismatched", res.Summary.Mismatched,
		"not_found", res.Summary.NotFound,
		"rejected", res.Summary.Rejected,
		"kept", res.Summary.Kept,
	)

	if hadErrors {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}
