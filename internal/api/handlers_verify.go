package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/citecheck/internal/extract"
	"github.com/dgallion1/citecheck/internal/pagetext"
	"github.com/dgallion1/citecheck/internal/record"
)

// handleVerify verifies caller-supplied candidates against an uploaded PDF
// and returns the result in the response.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
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
	if !ok {
		jsonError(w, "candidates are required", http.StatusBadRequest)
		return
	}

	p := s.orchestrator.Pipeline()
	if policy != "" {
		p = p.WithPolicy(policy)
	}

	pages, err := p.Index(r.Context(), data)
	if err != nil {
		if errors.Is(err, pagetext.ErrUnreadablePDF) {
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	res, err := p.ProcessDecoded(r.Context(), pages, candidates)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.log.Info("verified upload",
		"filename", filename,
		"pages", res.Pages,
		"total", res.Summary.Total,
		"kept", res.Summary.Kept,
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"filename":   filename,
		"policy":     p.Policy(),
		"pages":      res.Pages,
		"records":    res.Records,
		"rejections": res.Rejections,
		"summary":    res.Summary,
		"warnings":   res.Warnings,
	})
}

// formPolicy reads the optional policy override. An empty result means the
// server default applies.
func formPolicy(r *http.Request) (record.Policy, error) {
	v := strings.ToLower(strings.TrimSpace(r.FormValue("policy")))
	if v == "" {
		return "", nil
	}
	return record.ParsePolicy(v)
}

// parseForm limits the body to files uploads plus form overhead and parses it.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request, files int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*files+1024*1024)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("request exceeds max size (%d bytes)", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return false
		}
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// readPDF reads one uploaded PDF. On failure it returns the HTTP status to
// report alongside the error.
func (s *Server) readPDF(file multipart.File, header *multipart.FileHeader) (string, []byte, int, error) {
	filename := sanitizeFilename(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return filename, nil, http.StatusBadRequest, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return filename, nil, http.StatusInternalServerError, fmt.Errorf("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return filename, nil, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}
	if !looksLikePDF(data) {
		return filename, nil, http.StatusBadRequest, fmt.Errorf("%s is not a pdf", filename)
	}
	return filename, data, http.StatusOK, nil
}

// looksLikePDF checks for the %PDF- header within the first kilobyte.
func looksLikePDF(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte("%PDF-"))
}

// readCandidates decodes the optional candidates part, sent either as a file
// or as a plain form value. ok is false when neither is present.
func (s *Server) readCandidates(r *http.Request) ([]extract.Decoded, bool, error) {
	var raw []byte
	if fhs := r.MultipartForm.File["candidates"]; len(fhs) > 0 {
		f, err := fhs[0].Open()
		if err != nil {
			return nil, false, fmt.Errorf("open candidates: %w", err)
		}
		defer f.Close()
		raw, err = io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
		if err != nil {
			return nil, false, fmt.Errorf("read candidates: %w", err)
		}
	} else if v := r.FormValue("candidates"); v != "" {
		raw = []byte(v)
	} else {
		return nil, false, nil
	}

	decoded, err := s.decoder.Decode(raw)
	if err != nil {
		return nil, false, fmt.Errorf("decode candidates: %w", err)
	}
	return decoded, true, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed.pdf"
	}
	return name
}
