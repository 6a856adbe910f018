package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/bankbot/aicore/internal/embedder"
	"github.com/bankbot/aicore/internal/rag"
	"github.com/bankbot/aicore/internal/store"
)

// getEnvOrDefault returns the value of the named environment variable, or
// fallback when unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback when unset or unparsable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// buildQdrantStore connects to Qdrant using the QDRANT_* environment.
func buildQdrantStore(log *slog.Logger) (*rag.QdrantStore, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)

	qs, err := rag.NewQdrantStore(&rag.QdrantConfig{
		Host:   host,
		Port:   port,
		APIKey: os.Getenv("QDRANT_API_KEY"),
		UseTLS: os.Getenv("QDRANT_TLS") == "true",
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}

	log.Info("qdrant store ready", slog.String("host", host), slog.Int("port", port))
	return qs, nil
}

// buildEmbedder validates the embedding environment and constructs the
// configured embedder.
func buildEmbedder(log *slog.Logger) (rag.Embedder, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised",
		slog.String("provider", getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))),
	)
	return emb, nil
}

// openAnswerLog opens the answer log from the AICORE_ANSWER_DB environment.
// Returns a nil log (persistence disabled) on "disabled" or open failure;
// the service must keep answering without it.
func openAnswerLog(log *slog.Logger) (store.AnswerLog, func()) {
	dbPath := os.Getenv("AICORE_ANSWER_DB")
	if dbPath == "disabled" {
		log.Info("answer log disabled via AICORE_ANSWER_DB=disabled")
		return nil, func() {}
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("answer log: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, func() {}
		}
	}

	answers, err := store.Open(dbPath)
	if err != nil {
		log.Warn("answer log: failed to open, disabling", slog.Any("error", err))
		return nil, func() {}
	}
	log.Info("answer log opened", slog.String("path", dbPath))
	return answers, func() { _ = answers.Close() }
}
