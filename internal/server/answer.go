package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bankbot/aicore/internal/logging"
	"github.com/bankbot/aicore/internal/rag"
	"github.com/bankbot/aicore/internal/store"
)

// handleAnswer handles POST /api/v1/rag/answer. It runs the full RAG
// pipeline and always responds 200 with an answer body: pipeline failures
// degrade to the fixed fallback answer rather than an error status. Only a
// malformed or empty request is rejected with 400.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	collection := req.Collection
	if collection == "" {
		collection = s.cfg.DefaultCollection
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}

	// The chain is cheap to construct; building it per request lets the
	// caller override collection and top_k without shared mutable state.
	chain, err := rag.NewChain(&rag.ChainConfig{
		Embedder:   s.embedder,
		Store:      s.vstore,
		Generator:  s.generator,
		Collection: collection,
		Template:   s.cfg.PromptTemplate,
		TopK:       topK,
		Logger:     log,
	})
	if err != nil {
		log.Error("answer: chain construction failed", slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	start := time.Now()
	answer := chain.Answer(r.Context(), req.Text)
	elapsed := time.Since(start)

	outcome := outcomeOK
	if answer == rag.FallbackAnswer {
		outcome = outcomeFallback
	}
	s.metrics.answerRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.answerDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())

	s.logAnswer(log, collection, req.Text, answer)

	resp := answerResponse{
		Query:      req.Text,
		Answer:     answer,
		Collection: collection,
		Model:      s.generator.Model(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("answer encode error", slog.Any("error", err))
	}
}

// logAnswer persists the exchange to the local answer log. Failures are
// logged and swallowed; answer delivery never depends on the log.
func (s *Server) logAnswer(log *slog.Logger, collection, query, answer string) {
	if s.answers == nil {
		return
	}

	// Detached context so a client disconnect does not lose the record.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := store.Entry{
		Collection: collection,
		Query:      query,
		Answer:     answer,
		Model:      s.generator.Model(),
	}
	if err := s.answers.Append(ctx, entry); err != nil {
		log.Warn("answer log write failed", slog.Any("error", err))
	}
}
