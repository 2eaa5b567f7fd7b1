package api

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/dgallion1/citecheck/internal/export"
	"github.com/dgallion1/citecheck/internal/extract"
	"github.com/dgallion1/citecheck/internal/pipeline"
	"github.com/dgallion1/citecheck/internal/record"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r, 1) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	policy, err := formPolicy(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename, data, status, err := s.readPDF(file, header)
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}

	candidates, ok, err := s.readCandidates(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !ok && s.orchestrator.Pipeline().Generator() == nil {
		jsonError(w, "candidates are required when no generator is configured", http.StatusBadRequest)
		return
	}

	job := pipeline.NewJob(uuid.NewString(), filename, data, candidates, policy)
	if title := strings.TrimSpace(r.FormValue("title")); title != "" {
		job.Title = title
	}
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, jobAccepted(job))
}

func (s *Server) handleBatchExtract(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r, 10) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	policy, err := formPolicy(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	if s.orchestrator.Pipeline().Generator() == nil {
		jsonError(w, "batch extraction requires a configured generator", http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		job, err := s.submitFile(fh, policy)
		if err != nil {
			results = append(results, map[string]any{
				"filename": sanitizeFilename(fh.Filename),
				"error":    err.Error(),
			})
			continue
		}
		results = append(results, jobAccepted(job))
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func (s *Server) submitFile(fh *multipart.FileHeader, policy record.Policy) (*pipeline.Job, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file")
	}
	defer f.Close()

	filename, data, _, err := s.readPDF(f, fh)
	if err != nil {
		return nil, err
	}

	job := pipeline.NewJob(uuid.NewString(), filename, data, nil, policy)
	if err := s.orchestrator.Submit(job); err != nil {
		return nil, err
	}
	return job, nil
}

func jobAccepted(job *pipeline.Job) map[string]any {
	snap := job.Snapshot()
	return map[string]any{
		"job_id":      snap.ID,
		"filename":    snap.Filename,
		"status":      snap.Status,
		"poll_url":    fmt.Sprintf("/api/jobs/%s", snap.ID),
		"records_url": fmt.Sprintf("/api/jobs/%s/records.jsonl", snap.ID),
	}
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleJobRecords streams the kept records of a finished job as JSONL.
func (s *Server) handleJobRecords(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	if !snap.Status.Done() {
		jsonError(w, fmt.Sprintf("job is %s", snap.Status), http.StatusConflict)
		return
	}
	res := job.Result()
	if res == nil {
		jsonError(w, "job produced no records", http.StatusConflict)
		return
	}

	name := strings.TrimSuffix(snap.Filename, ".pdf") + ".jsonl"
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := export.WriteJSONL(w, res.Records); err != nil {
		s.log.Error("write records", "job_id", snap.ID, "error", err)
	}
}

// handleGeneratorStats reports the configured generator and its rolling
// latency window.
func (s *Server) handleGeneratorStats(w http.ResponseWriter, r *http.Request) {
	g := s.orchestrator.Pipeline().Generator()
	stats := extract.StatsOf(g)
	if g == nil || stats == nil {
		jsonError(w, "generator stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"provider":    g.Name(),
		"model":       g.Model(),
		"stats":       stats.Snapshot(),
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
