// Package httpserver provides the HTTP REST API server for the researcher
// identity service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/forskardb/researcher-identity-service/internal/database"
	"github.com/forskardb/researcher-identity-service/internal/domain"
	"github.com/forskardb/researcher-identity-service/internal/observability"
	"github.com/forskardb/researcher-identity-service/internal/repository"
)

// Matcher resolves an identity reference against the registry.
type Matcher interface {
	Match(ctx context.Context, localRecordID string, ref *domain.IdentityReference) (*domain.MatchCandidate, error)
}

// RegistryClient fetches canonical researcher profiles.
type RegistryClient interface {
	FetchByID(ctx context.Context, id string, includeDetails bool) (*domain.ResearcherProfile, error)
	Search(ctx context.Context, query string, maxResults int) ([]*domain.ResearcherProfile, error)
}

// BibliographyClient searches bibliographic publication records.
type BibliographyClient interface {
	Search(ctx context.Context, query string, maxResults int) ([]*domain.Publication, error)
	SearchByIdentifier(ctx context.Context, identifier string, maxResults int) ([]*domain.Publication, error)
}

// ScholarClient scrapes public scholar search results and profiles.
type ScholarClient interface {
	SearchByQuery(ctx context.Context, query string, maxResults int) ([]*domain.WebResult, error)
	SearchByIdentity(ctx context.Context, ref *domain.IdentityReference) (*domain.ScholarProfile, error)
}

// Server is the HTTP REST API server.
type Server struct {
	router         chi.Router
	httpServer     *http.Server
	matcher        Matcher
	registry       RegistryClient
	bibliography   BibliographyClient
	scholar        ScholarClient
	mappingRepo    repository.MappingRepository
	researcherRepo repository.ResearcherRepository
	db             *database.DB
	metrics        *observability.Metrics
	logger         zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
	MetricsPath     string
}

// Deps bundles the server's dependencies.
type Deps struct {
	Matcher        Matcher
	Registry       RegistryClient
	Bibliography   BibliographyClient
	Scholar        ScholarClient
	MappingRepo    repository.MappingRepository
	ResearcherRepo repository.ResearcherRepository
	DB             *database.DB
	Metrics        *observability.Metrics
	Logger         zerolog.Logger
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Deps) *Server {
	s := &Server{
		matcher:        deps.Matcher,
		registry:       deps.Registry,
		bibliography:   deps.Bibliography,
		scholar:        deps.Scholar,
		mappingRepo:    deps.MappingRepo,
		researcherRepo: deps.ResearcherRepo,
		db:             deps.DB,
		metrics:        deps.Metrics,
		logger:         deps.Logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter(cfg)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter(cfg Config) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestContextMiddleware)
	r.Use(jsonContentTypeMiddleware)

	// Health endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	if cfg.MetricsEnabled {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/match", s.matchIdentity)

		r.Get("/researchers/{identifier}", s.getResearcher)
		r.Get("/researchers/{identifier}/publications", s.getResearcherPublications)

		r.Get("/publications/search", s.searchPublications)
		r.Get("/scholar/search", s.searchScholarResults)
		r.Get("/scholar/profile", s.getScholarProfile)

		r.Get("/mappings", s.listMappings)

		r.Route("/staged-researchers", func(r chi.Router) {
			r.Post("/", s.createStagedResearcher)
			r.Get("/", s.listStagedResearchers)
			r.Get("/{id}", s.getStagedResearcher)
			r.Put("/{id}", s.updateStagedResearcher)
			r.Delete("/{id}", s.deleteStagedResearcher)
			r.Post("/{id}/promote", s.promoteStagedResearcher)
		})
	})

	return r
}

// Router exposes the underlying handler, primarily for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status including database connectivity.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
