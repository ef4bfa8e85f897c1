package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raine/exterior-stylist/agent"
	"github.com/raine/exterior-stylist/imageref"
)

// Config controls the HTTP surface.
type Config struct {
	ListenAddr     string
	MaxUploadBytes int64
}

// Server is the HTTP API surface for the exterior stylist. Both
// pipelines are stateless across requests; the agent and generator
// clients are the only shared resources and they are safe for
// concurrent use.
type Server struct {
	cfg       Config
	agent     agent.Agent
	generator agent.ImageGenerator
	resolver  *imageref.Resolver
	router    chi.Router
}

// New creates a Server around the given collaborators.
func New(cfg Config, ag agent.Agent, gen agent.ImageGenerator, resolver *imageref.Resolver) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 16 << 20
	}

	s := &Server{
		cfg:       cfg,
		agent:     ag,
		generator: gen,
		resolver:  resolver,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()

	r.Use(s.corsMiddleware)

	// CORS preflight for the external presentation layer
	r.Options("/api/analyze-house", s.optionsHandler("POST"))
	r.Options("/api/generate-final", s.optionsHandler("POST"))

	r.Get("/healthz", s.handleHealth)
	r.Post("/api/analyze-house", s.handleAnalyzeHouse)
	r.Post("/api/generate-final", s.handleGenerateFinal)

	s.router = r
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe. The
// write timeout is generous because a single request may wait on
// several upstream generation calls.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
