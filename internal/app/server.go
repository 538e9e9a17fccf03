package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Rajan093/VastuAi/internal/api/handlers"
	appMiddleware "github.com/Rajan093/VastuAi/internal/api/middlewares"
	"github.com/Rajan093/VastuAi/internal/config"
	"github.com/Rajan093/VastuAi/internal/core"
	"github.com/Rajan093/VastuAi/internal/core/ingest"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, db core.DbClient, obj core.ObjectClient, ing ingest.Ingestor,
	resolver handlers.PlaceResolver, calc handlers.ChartCalculator,
	retriever handlers.RuleRetriever, astrologer handlers.Astrologer) *Server {

	authHandler := handlers.NewAuthHandler(db, cfg.JWTSecret)
	docHandler := handlers.NewDocumentHandler(db, obj, ing, cfg)
	sessionHandler := handlers.NewSessionHandler(db, resolver, calc, retriever, astrologer)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))
			protected.Post("/documents/upload", docHandler.UploadDocument)
			protected.Get("/documents", docHandler.GetDocuments)

			protected.Post("/sessions", sessionHandler.CreateSession)
			protected.Get("/sessions/{sessionID}", sessionHandler.GetSession)
			protected.Post("/sessions/{sessionID}/messages", sessionHandler.PostMessage)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
