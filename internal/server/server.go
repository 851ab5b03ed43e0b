package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/openfolio/portfolio-analyzer/internal/database"
	"github.com/openfolio/portfolio-analyzer/internal/history"
	"github.com/openfolio/portfolio-analyzer/internal/modules/learn"
	"github.com/openfolio/portfolio-analyzer/internal/modules/marketdata"
	"github.com/openfolio/portfolio-analyzer/internal/modules/portfolio"
	"github.com/openfolio/portfolio-analyzer/internal/modules/risk"
)

// Config holds server configuration
type Config struct {
	Log          zerolog.Logger
	DB           *database.DB
	Histories    *history.Store
	Sectors      portfolio.SectorProvider
	MarketSymbol string
	Port         int
	DevMode      bool
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
}

// New creates a new HTTP server with all module routes wired up
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
	}

	portfolioRepo := portfolio.NewRepository(cfg.DB.Conn(), cfg.Log)
	portfolioService := portfolio.NewService(cfg.Histories, cfg.Sectors, cfg.MarketSymbol, cfg.Log)
	portfolioHandler := portfolio.NewHandler(portfolioRepo, portfolioService, cfg.Log)

	riskService := risk.NewService(cfg.Histories, cfg.Log)
	riskHandler := risk.NewHandler(portfolioRepo, riskService, cfg.Log)

	learnHandler := learn.NewHandler(portfolioRepo, portfolioService, cfg.Log)
	marketHandler := marketdata.NewHandler(cfg.Histories, cfg.Log)

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes(portfolioHandler, riskHandler, learnHandler, marketHandler)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	// Remote market-data fetches can take a while on cold caches
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(
	portfolioHandler *portfolio.Handler,
	riskHandler *risk.Handler,
	learnHandler *learn.Handler,
	marketHandler *marketdata.Handler,
) {
	s.router.Get("/", s.handleWelcome)
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/portfolios", func(r chi.Router) {
			portfolioHandler.RegisterRoutes(r)
			riskHandler.RegisterRoutes(r)
		})

		r.Route("/learn", learnHandler.RegisterRoutes)
		r.Route("/cache", marketHandler.RegisterCacheRoutes)
		r.Route("/market", marketHandler.RegisterMarketRoutes)
	})
}

// Router exposes the configured route tree, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"message":"Welcome to the Investment Portfolio Analyzer API"}`)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"healthy"}`)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
