// Package server provides the HTTP API for CertiQuest.
package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/certiquest/internal/catalog"
	"github.com/hyperjump/certiquest/internal/config"
	"github.com/hyperjump/certiquest/internal/embedding"
	"github.com/hyperjump/certiquest/internal/models"
)

// Recommender produces ranked certifications for a student.
type Recommender interface {
	Recommend(ctx context.Context, studentID string) ([]*models.Certification, error)
	Explain(ctx context.Context, studentID string) (*models.ExplainedRecommendation, error)
}

// ModelStatus reports the embedding model's initialization state.
type ModelStatus interface {
	State() embedding.State
	Err() error
}

// WatchService manages the catalog import directories. Optional.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
}

// Server is the HTTP server for the CertiQuest API.
type Server struct {
	catalog    *catalog.Service
	recommend  Recommender
	model      ModelStatus
	config     *config.Config
	configPath string
	configMu   sync.Mutex
	watch      WatchService
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates a server with the given dependencies. watch may be nil; when
// configPath is set, added import directories are persisted to it.
func NewServer(
	cat *catalog.Service,
	rec Recommender,
	model ModelStatus,
	cfg *config.Config,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		catalog:    cat,
		recommend:  rec,
		model:      model,
		config:     cfg,
		configPath: configPath,
		watch:      watch,
		logger:     logger,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if s.config.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.Server.RequestTimeout))
	}
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/recommendations/{studentId}", s.handleRecommendations)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/recommendations/{studentId}", s.handleRecommendations)

		r.Route("/certifications", func(r chi.Router) {
			r.Get("/", s.handleListCertifications)
			r.Get("/search", s.handleSearchCertifications)
			r.Post("/add", s.handleAddCertification)
			r.Post("/review", s.handleAddReview)
			r.Post("/verify", s.handleVerify)
			r.Get("/{id}", s.handleGetCertification)
			r.Delete("/{id}", s.handleDeleteCertification)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Post("/", s.handleCreateUser)
			r.Get("/{id}", s.handleGetUser)
			r.Delete("/{id}", s.handleDeleteUser)
			r.Put("/{id}/interests", s.handleSetInterests)
			r.Put("/{id}/bookmark", s.handleToggleBookmark)
		})

		r.Get("/import/directories", s.handleImportDirectoriesList)
		r.Post("/import/directories", s.handleImportDirectoriesAdd)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
