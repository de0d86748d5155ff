package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/lexcora/rased/internal/api/handlers"
	appMiddleware "github.com/lexcora/rased/internal/api/middlewares"
	"github.com/lexcora/rased/internal/config"
	"github.com/lexcora/rased/internal/core/auth"
	"github.com/lexcora/rased/internal/core/ratelimit"
	"github.com/lexcora/rased/internal/metrics"
	"github.com/lexcora/rased/internal/services"
)

// Deps are the collaborators the routes are built from.
type Deps struct {
	Assistant *services.Assistant
	Limiter   *ratelimit.Limiter
	Gate      *auth.Gate
	Metrics   *metrics.Metrics
	Redis     handlers.Pinger
	Started   time.Time
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, d Deps) *Server {
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg, d),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{httpServer: httpSrv}
}

func NewRouter(cfg *config.Config, d Deps) http.Handler {
	assistantHandler := handlers.NewAssistantHandler(d.Assistant, cfg.MaxBodyBytes, d.Metrics)
	analyzeHandler := handlers.NewAnalyzeHandler(d.Assistant, cfg.MaxBodyBytes, d.Metrics)
	chatHandler := handlers.NewChatHandler(d.Assistant, cfg.MaxBodyBytes, d.Metrics)
	healthHandler := handlers.NewHealthHandler(d.Started, d.Limiter.Store().Name(), d.Redis)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appMiddleware.RequestLogger(d.Metrics))
	r.Use(appMiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.FrontendOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Lexcora-Stream"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(handlers.NotFound)

	// public endpoints
	r.Get("/health", healthHandler.Health)
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	// API routes
	r.Route("/api", func(api chi.Router) {
		api.Use(appMiddleware.RateLimit(d.Limiter, d.Gate, d.Metrics))
		api.Use(appMiddleware.APIKey(d.Gate))
		api.MethodNotAllowed(handlers.MethodNotAllowed)
		api.NotFound(handlers.NotFound)

		api.Post("/assistant", assistantHandler.Ask)
		api.Post("/analyze", analyzeHandler.Analyze)
		api.Post("/chat", chatHandler.Chat)
	})

	return r
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. Open streams are given until ctx
// is done to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
