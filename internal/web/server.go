// Package web provides the HTTP API for running merges.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/sheetmerge/internal/config"
	"github.com/JonMunkholm/sheetmerge/internal/core"
	"github.com/JonMunkholm/sheetmerge/internal/history"
	"github.com/JonMunkholm/sheetmerge/internal/service"
	"github.com/JonMunkholm/sheetmerge/internal/web/middleware"
)

// MergeService is the part of service.Service the handlers use.
type MergeService interface {
	Defaults() core.Options
	Run(ctx context.Context, req service.Request) (service.Result, error)
	Preview(ctx context.Context, path string, opts core.Options, n int) (core.Dataset, error)
	SheetColumns(path, sheet string) ([]string, error)
	History(ctx context.Context, limit int) ([]history.Entry, error)
	LimiterStatus() service.LimiterStatus
}

// Server is the HTTP server for the merge API.
type Server struct {
	cfg      *config.Config
	service  MergeService
	router   *chi.Mux
	server   *http.Server
	limiters []*rateLimiter

	// dataRoot confines request paths; empty rejects every path
	dataRoot string
}

// NewServer creates a new Server instance. Without a usable data directory
// the endpoints that take file paths reject every request.
func NewServer(cfg *config.Config, svc MergeService) *Server {
	s := &Server{
		cfg:     cfg,
		service: svc,
		router:  chi.NewRouter(),
	}
	if root, err := cfg.Server.DataRoot(); err != nil {
		slog.Warn("file endpoints disabled", "error", err)
	} else {
		s.dataRoot = root
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(s.securityHeaders)
	s.router.Use(middleware.Caller)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		r.Get("/schema", s.handleSchema)
		r.Get("/status", s.handleStatus)
		r.Get("/history", s.handleHistory)

		r.Post("/preview", s.handlePreview)
		r.Post("/columns", s.handleColumns)

		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(s.newRateLimiter(s.cfg.Rate.MergeLimit, time.Minute).middleware)
			}
			r.Post("/merge", s.handleMerge)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		if s.cfg.Security.EnableCSP {
			// the API serves JSON only
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
