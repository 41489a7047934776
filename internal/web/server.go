// Package web provides the HTTP JSON API over the spreadsheet workspace.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/weMaron/excel-processor/internal/config"
	"github.com/weMaron/excel-processor/internal/inference"
	"github.com/weMaron/excel-processor/internal/profile"
	"github.com/weMaron/excel-processor/internal/workspace"
)

// Server is the HTTP server for the spreadsheet review application.
type Server struct {
	cfg      *config.Config
	ws       *workspace.Workspace
	profiles *profile.Store  // nil when no database is configured
	engine   inference.Engine // nil when no API key is configured
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new Server instance. The profile store and the
// inference engine are optional; endpoints depending on a missing one
// answer 503.
func NewServer(cfg *config.Config, ws *workspace.Workspace, profiles *profile.Store, engine inference.Engine) *Server {
	s := &Server{
		cfg:      cfg,
		ws:       ws,
		profiles: profiles,
		engine:   engine,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Security hardening
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Sheet upload and column mapping
		r.Post("/upload", s.handleUpload)
		r.Get("/headers", s.handleHeaders)
		r.Post("/mapping", s.handleConfirmMapping)

		// Typed rows and filters
		r.Get("/rows", s.handleRows)
		r.Get("/filters", s.handleGetFilters)
		r.Put("/filters", s.handleSetFilters)
		r.Post("/filters", s.handleAddFilter)
		r.Get("/operators", s.handleOperators)

		// Review runs
		r.Put("/instruction", s.handleSetInstruction)
		r.Post("/process", s.handleStartProcess)
		r.Get("/process/progress", s.handleProcessProgress)
		r.Post("/process/cancel", s.handleCancelProcess)

		// Saved profiles
		r.Get("/profiles", s.handleListProfiles)
		r.Post("/profiles", s.handleSaveProfile)
		r.Delete("/profiles/{id}", s.handleDeleteProfile)
		r.Post("/profiles/{id}/apply", s.handleApplyProfile)
		r.Get("/profiles/match", s.handleMatchProfile)

		// Report generation and export
		r.Get("/report/settings", s.handleGetReportSettings)
		r.Put("/report/settings", s.handleSetReportSettings)
		r.Get("/report", s.handleReport)
		r.Get("/export/csv", s.handleExportCSV)
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

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// Control referrer information
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// rateLimiter implements a simple token bucket rate limiter per IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the specified rate per window.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

// cleanup removes stale visitor entries every minute.
func (rl *rateLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastReset) > rl.window*2 {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{
			tokens:    rl.rate - 1,
			lastReset: time.Now(),
		}
		return true
	}

	// Reset tokens if window has passed
	if time.Since(v.lastReset) > rl.window {
		v.tokens = rl.rate - 1
		v.lastReset = time.Now()
		return true
	}

	if v.tokens <= 0 {
		return false
	}

	v.tokens--
	return true
}

// middleware returns an HTTP middleware that rate limits by IP.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		// RealIP middleware rewrites RemoteAddr; X-Real-IP is the fallback
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			ip = realIP
		}

		if !rl.allow(ip) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
				Error:   "rate limit exceeded",
				Message: "rate limit exceeded",
				Code:    "RATE_LIMITED",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
