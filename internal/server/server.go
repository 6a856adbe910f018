// Package server implements the HTTP server that exposes the RAG answer
// pipeline and the vector-database management API.
// The server is started by the `aicore serve` CLI command.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bankbot/aicore/internal/logging"
	"github.com/bankbot/aicore/internal/rag"
	"github.com/bankbot/aicore/internal/store"
	"github.com/bankbot/aicore/internal/task"
)

// Deps bundles the server's runtime dependencies.
type Deps struct {
	// Embedder converts query text into vectors. Required.
	Embedder rag.Embedder
	// Store is the vector store. Required.
	Store rag.VectorStore
	// Generator produces answers. Required.
	Generator rag.Generator
	// Tracker records ingestion-task status. Required.
	Tracker task.Tracker
	// Runner executes ingestion jobs. Required.
	Runner *task.Runner
	// Answers is the local answer log; nil disables persistence.
	Answers store.AnswerLog
}

// New constructs a Server from the provided dependencies and config. Metrics
// are registered against reg; pass a fresh prometheus.Registry in tests.
func New(deps *Deps, cfg *Config, reg prometheus.Registerer) (*Server, error) {
	if deps == nil {
		return nil, fmt.Errorf("server: deps must not be nil")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("server: embedder must not be nil")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("server: vector store must not be nil")
	}
	if deps.Generator == nil {
		return nil, fmt.Errorf("server: generator must not be nil")
	}
	if deps.Tracker == nil {
		return nil, fmt.Errorf("server: tracker must not be nil")
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("server: runner must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout covers the full answer pipeline, LLM call included.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.DefaultCollection == "" {
		cfg.DefaultCollection = "qa_collection"
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 3
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	s := &Server{
		embedder:  deps.Embedder,
		vstore:    deps.Store,
		generator: deps.Generator,
		tracker:   deps.Tracker,
		runner:    deps.Runner,
		answers:   deps.Answers,
		cfg:       cfg,
		log:       log,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(reg),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("api authentication disabled: no API key configured")
	}

	// protect wraps the business routes with auth, rate limiting, and
	// per-handler metrics; the operational routes (health, ready, metrics)
	// stay open.
	protect := func(name string, h http.HandlerFunc) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(s.metrics.instrument(name, h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/rag/answer", protect("rag_answer", s.handleAnswer))
	mux.Handle("POST /api/v1/vectordb/load", protect("vectordb_load", s.handleLoad))
	mux.Handle("GET /api/v1/vectordb/task/{id}", protect("vectordb_task", s.handleTask))
	mux.Handle("GET /api/v1/vectordb/collections", protect("vectordb_collections", s.handleCollections))
	mux.Handle("GET /api/v1/vectordb/collection/{name}", protect("vectordb_collection", s.handleCollectionInfo))
	mux.Handle("POST /api/v1/vectordb/search/{name}", protect("vectordb_search", s.handleSearch))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gathererFor(reg), promhttp.HandlerOpts{}))

	handler := requestLogger(log, mux)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// gathererFor returns reg as a prometheus.Gatherer when it is one (the
// default registry and fresh test registries both are), falling back to the
// global default gatherer.
func gathererFor(reg prometheus.Registerer) prometheus.Gatherer {
	if g, ok := reg.(prometheus.Gatherer); ok {
		return g
	}
	return prometheus.DefaultGatherer
}

// Handler returns the server's root HTTP handler, middleware included.
// Used by tests to drive the server through httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("aicore server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}
