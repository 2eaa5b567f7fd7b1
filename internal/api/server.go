package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dgallion1/citecheck/internal/config"
	"github.com/dgallion1/citecheck/internal/extract"
	"github.com/dgallion1/citecheck/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for citecheck.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	decoder      *extract.Decoder
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, log *slog.Logger, cfg config.Config) (*Server, error) {
	dec, err := extract.NewDecoder()
	if err != nil {
		return nil, fmt.Errorf("candidate decoder: %w", err)
	}
	s := &Server{
		orchestrator: orch,
		decoder:      dec,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/verify", s.handleVerify)
		r.Post("/api/extract", s.handleExtract)
		r.Post("/api/extract/batch", s.handleBatchExtract)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)
		r.Get("/api/jobs/{jobID}/records.jsonl", s.handleJobRecords)
		r.Get("/api/stats/generator", s.handleGeneratorStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"jobs":   s.orchestrator.Stats(),
	})
}
