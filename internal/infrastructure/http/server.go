// Package http exposes the query chain and ingestion over a JSON/SSE API.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/0xcro3dile/archiverag/internal/domain/entities"
	"github.com/0xcro3dile/archiverag/internal/domain/usecases"
)

// Backend is what the server needs from the application runtime.
type Backend interface {
	Chain(cfg usecases.ChainConfig) (*usecases.QueryChain, error)
	Ingest(ctx context.Context) (*entities.IngestReport, error)
	Count(ctx context.Context) (int, error)
	Clear()
}

// Server is the HTTP server for the RAG API.
type Server struct {
	router  chi.Router
	backend Backend
	log     *slog.Logger
	addr    string
}

// NewServer creates a new HTTP server.
func NewServer(backend Backend, addr string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		backend: backend,
		log:     log.With("component", "http"),
		addr:    addr,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/query", s.handleQuery)
		r.Get("/query/stream", s.handleQueryStream) // SSE streaming
		r.Post("/ingest", s.handleIngest)
		r.Post("/cache/clear", s.handleClearCache)
	})

	s.router = r
}

// Start runs the HTTP server until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0, // generation and ingestion are bounded by backend timeouts
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.log.Info("server starting", "addr", s.addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
