// Package server wires the HTTP surface: the authenticated translation API,
// the admin console, and the operational endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/langtransd/langtrans/internal/audit"
	"github.com/langtransd/langtrans/internal/guard"
	"github.com/langtransd/langtrans/internal/handler"
	"github.com/langtransd/langtrans/internal/keystore"
	"github.com/langtransd/langtrans/internal/server/middleware"
	"github.com/langtransd/langtrans/internal/session"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	// TranslateRPM caps translation requests per API key per minute.
	TranslateRPM int
	// LoginRPM caps login attempts per IP per minute.
	LoginRPM int

	AdminUsername string
	AdminPassword string
	Version       string
}

// DefaultConfig returns a Config with sensible production defaults. The
// admin identity has no default.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		TranslateRPM:    60,
		LoginRPM:        30,
		Version:         "dev",
	}
}

// Server is the top-level HTTP server. It owns the Chi router and the
// domain components behind it.
type Server struct {
	cfg        Config
	router     chi.Router
	keys       *keystore.Store
	sessions   *session.Manager
	guard      *guard.Guard
	translator handler.Translator
	usage      *audit.Log
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server, wires up all routes and middleware, and returns it
// ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, translator handler.Translator, keys *keystore.Store, sessions *session.Manager, g *guard.Guard, usage *audit.Log, logger *slog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		keys:       keys,
		sessions:   sessions,
		guard:      g,
		translator: translator,
		usage:      usage,
		logger:     logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- API document (no auth required) ---
	baseURL := fmt.Sprintf("http://%s:%d", s.cfg.Host, s.cfg.Port)
	r.Get("/openapi.json", handler.NewOpenAPIHandler(baseURL, s.cfg.Version).ServeSpec)

	// --- Translation API ---
	translateHandler := handler.NewTranslateHandler(s.translator, s.usage, s.logger)
	r.Route("/api", func(r chi.Router) {
		if s.cfg.TranslateRPM > 0 {
			r.Use(middleware.RateLimitByAuthorization(s.cfg.TranslateRPM))
		}
		r.Use(middleware.Authenticate(s.keys, s.logger))

		r.Get("/translate", translateHandler.TranslateGET)
		r.Post("/translate", translateHandler.TranslatePOST)
	})

	// --- Admin console ---
	adminHandler := handler.NewAdminHandler(
		s.cfg.AdminUsername, s.cfg.AdminPassword,
		s.sessions, s.keys, s.guard, s.usage, s.logger,
	)
	r.Group(func(r chi.Router) {
		if s.cfg.LoginRPM > 0 {
			r.Use(middleware.RateLimitByIP(s.cfg.LoginRPM))
		}
		r.Get("/login", adminHandler.LoginForm)
		r.Post("/login", adminHandler.Login)
	})
	r.Post("/logout", adminHandler.Logout)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(s.sessions))

		r.Get("/dashboard", adminHandler.Dashboard)
		r.Post("/keys", adminHandler.CreateKey)
		r.Post("/keys/revoke", adminHandler.RevokeKey)
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 once the model is loaded;
// the engine is constructed before the server, so readiness tracks the
// usage store only.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.translator == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"model not loaded"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before returning.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// Generations can take a while on CPU; the write timeout has to
		// cover a full decode.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
