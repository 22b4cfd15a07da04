// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/des-work/Arcano-Desk-sub001/internal/config"
	"github.com/des-work/Arcano-Desk-sub001/internal/hooks"
	"github.com/des-work/Arcano-Desk-sub001/internal/storage"
	"github.com/des-work/Arcano-Desk-sub001/internal/store"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is used when the configuration leaves the address empty.
	DefaultAddr = "127.0.0.1:8787"

	// DefaultMaxUploadMB caps request bodies when none is configured.
	DefaultMaxUploadMB = 10

	// healthCheckTimeout bounds the model service probe in /health.
	healthCheckTimeout = 2 * time.Second

	// Version is the API version reported by /health.
	Version = "1.0.0"
)

// DataService is the part of the storage layer the API reads directly,
// outside of the store.
type DataService interface {
	GetStatistics(ctx context.Context) (storage.Statistics, error)
	ExportData(ctx context.Context) (*storage.ExportBundle, error)
	ImportData(ctx context.Context, data []byte, format storage.Format) (*storage.ExportBundle, error)
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the HTTP API.
type Server struct {
	cfg     config.ServerConfig
	hooks   *hooks.Hooks
	store   *store.Store
	data    DataService
	logger  *zap.Logger
	router  *mux.Router
	limiter *RateLimiter
	started time.Time

	srv *http.Server
}

// New builds a server over h and data. Routes are registered immediately.
func New(cfg config.ServerConfig, h *hooks.Hooks, data DataService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = DefaultMaxUploadMB
	}
	s := &Server{
		cfg:     cfg,
		hooks:   h,
		store:   h.Store(),
		data:    data,
		logger:  logger,
		router:  mux.NewRouter(),
		limiter: NewRateLimiter(cfg.RateLimit, cfg.Burst),
		started: time.Now(),
	}
	s.routes()
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) maxBody() int64 { return int64(s.cfg.MaxUploadMB) << 20 }

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) routes() {
	r := s.router
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(mux.MiddlewareFunc(RateLimitMiddleware(s.limiter)))

	api.HandleFunc("/models", s.handleModels).Methods(http.MethodGet)
	api.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)
	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodPost)
	api.HandleFunc("/study-material", s.handleStudyMaterial).Methods(http.MethodPost)
	api.HandleFunc("/question", s.handleQuestion).Methods(http.MethodPost)
	api.HandleFunc("/topic", s.handleTopic).Methods(http.MethodPost)
	api.HandleFunc("/topics/suggest", s.handleSuggestTopics).Methods(http.MethodPost)

	api.HandleFunc("/files", s.handleListFiles).Methods(http.MethodGet)
	api.HandleFunc("/files", s.handleUploadFile).Methods(http.MethodPost)
	api.HandleFunc("/files/{id}", s.handleDeleteFile).Methods(http.MethodDelete)
	api.HandleFunc("/files/{id}/summarize", s.handleSummarizeFile).Methods(http.MethodPost)
	api.HandleFunc("/files/{id}/materials", s.handleFileMaterial).Methods(http.MethodPost)

	api.HandleFunc("/courses", s.handleListCourses).Methods(http.MethodGet)
	api.HandleFunc("/courses", s.handleSaveCourse).Methods(http.MethodPost)
	api.HandleFunc("/courses/{id}", s.handleDeleteCourse).Methods(http.MethodDelete)

	api.HandleFunc("/materials", s.handleListMaterials).Methods(http.MethodGet)
	api.HandleFunc("/materials", s.handleSaveMaterial).Methods(http.MethodPost)
	api.HandleFunc("/materials/{id}", s.handleDeleteMaterial).Methods(http.MethodDelete)

	api.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handlePutSettings).Methods(http.MethodPut)

	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/activity", s.handleActivity).Methods(http.MethodGet)
	api.HandleFunc("/notifications", s.handleNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id}", s.handleDismissNotification).Methods(http.MethodDelete)

	api.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/export/pack", s.handleExportPack).Methods(http.MethodGet)
	api.HandleFunc("/import", s.handleImport).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
		CORSMiddleware(s.cfg.AllowedOrigins),
		MaxBodyMiddleware(s.maxBody()),
	)(s.router)
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Generation calls can take as long as the model client's retries.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("SERVER_START", zap.String("addr", s.cfg.Addr), zap.String("version", Version))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("SERVER_SHUTDOWN")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
