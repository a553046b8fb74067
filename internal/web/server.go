// Package web provides the HTTP server: the spreadsheet tool pages and API,
// the name generator page, and the transliteration proxy endpoint.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/sheettools/internal/config"
	"github.com/JonMunkholm/sheettools/internal/ratelimit"
	"github.com/JonMunkholm/sheettools/internal/sheet"
	"github.com/JonMunkholm/sheettools/internal/transliterate"
	mw "github.com/JonMunkholm/sheettools/internal/web/middleware"
)

// Deps are the services the handlers call.
type Deps struct {
	// Transliterator answers /api/transliterate. Nil behaves as a service
	// without credentials.
	Transliterator *transliterate.Service

	// RateLimiter guards transliteration. Nil disables rate limiting.
	RateLimiter *ratelimit.Limiter

	// Conversions bounds concurrent spreadsheet ingestion. Nil uses the
	// configured upload limits.
	Conversions *sheet.Limiter
}

// Server is the HTTP server for the tools site.
type Server struct {
	cfg    *config.Config
	deps   Deps
	router *chi.Mux
	server *http.Server
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Transliterator == nil {
		deps.Transliterator = transliterate.NewService(nil, transliterate.Options{})
	}
	if deps.Conversions == nil {
		deps.Conversions = sheet.NewLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(mw.SecurityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Pages
	s.router.Get("/", s.handleIndex)
	s.router.Get("/tools/{tool}", s.handleToolPage)
	s.router.Post("/tools/{tool}", s.handleToolSubmit)
	s.router.Get("/name-arabic-generator", s.handleNamePage)
	s.router.Post("/name-arabic-generator", s.handleNameSubmit)

	s.router.NotFound(s.handleNotFound)

	s.router.Get("/sitemap.xml", s.handleSitemap)
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/tools", s.handleListTools)
		r.Post("/sheets/{tool}/preview", s.handleSheetPreview)
		r.Post("/sheets/{tool}/export/{format}", s.handleSheetExport)

		// Preflight never counts against the rate limit.
		cors := mw.CORS(s.cfg.Security.Origins())
		r.With(cors).Options("/transliterate", s.handleTransliterateOptions)
		r.With(cors, s.rateLimit).Post("/transliterate", s.handleTransliterate)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// rateLimit admits at most the configured number of requests per client
// per window. Clients are keyed by ForwardedClientKey.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.deps.RateLimiter == nil {
		return next
	}
	retryAfter := strconv.Itoa(int(math.Ceil(s.cfg.Rate.Window.Seconds())))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := mw.ForwardedClientKey(r)
		if !s.deps.RateLimiter.Allow(r.Context(), key) {
			w.Header().Set("Retry-After", retryAfter)
			s.writeProxyError(w, r, transliterate.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
