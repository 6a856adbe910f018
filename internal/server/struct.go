package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bankbot/aicore/internal/rag"
	"github.com/bankbot/aicore/internal/store"
	"github.com/bankbot/aicore/internal/task"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// DefaultCollection is the collection queried when a request omits one
	// (default: "qa_collection").
	DefaultCollection string
	// DefaultTopK is the number of contexts retrieved per answer when a
	// request omits top_k (default: 3).
	DefaultTopK int
	// PromptTemplate overrides the built-in answer prompt when non-empty.
	PromptTemplate string
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/v1/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
}

// jobRunner is the interface the upload handler uses to hand off background
// ingestion. *task.Runner satisfies it; tests inject a fake.
type jobRunner interface {
	// Submit enqueues one ingestion job.
	Submit(job task.Job) error
}

// Server is the HTTP server exposing the RAG answer and vector-db surfaces.
type Server struct {
	// embedder converts query text into vectors for retrieval and search.
	embedder rag.Embedder
	// vstore is the vector store backing retrieval and the vectordb routes.
	vstore rag.VectorStore
	// generator produces answers from retrieval-augmented prompts.
	generator rag.Generator
	// tracker records background ingestion-task status for polling.
	tracker task.Tracker
	// runner executes ingestion jobs in the background.
	runner jobRunner
	// answers is the local answer log; nil disables answer persistence.
	answers store.AnswerLog
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// answerRequest is the JSON body for POST /api/v1/rag/answer.
type answerRequest struct {
	// Text is the user's question.
	Text string `json:"text"`
	// Collection overrides the default collection to retrieve from.
	Collection string `json:"collection,omitempty"`
	// TopK overrides the number of contexts retrieved.
	TopK int `json:"top_k,omitempty"`
}

// answerResponse is the JSON response for POST /api/v1/rag/answer.
type answerResponse struct {
	// Query echoes the question that was answered.
	Query string `json:"query"`
	// Answer is the generated (or fallback) answer text.
	Answer string `json:"answer"`
	// Collection is the collection the contexts were retrieved from.
	Collection string `json:"collection"`
	// Model is the generation model name in effect for this request.
	Model string `json:"model"`
}

// loadResponse is the JSON response for POST /api/v1/vectordb/load.
type loadResponse struct {
	// TaskID is the id to poll on the task route.
	TaskID string `json:"task_id"`
	// Status is the initial task state, always "queued".
	Status string `json:"status"`
	// Message is a human-readable confirmation.
	Message string `json:"message"`
}

// collectionsResponse is the JSON response for GET /api/v1/vectordb/collections.
type collectionsResponse struct {
	// Collections lists every collection by name.
	Collections []collectionName `json:"collections"`
}

// collectionName wraps a collection name for the listing response.
type collectionName struct {
	Name string `json:"name"`
}

// searchRequest is the JSON body for POST /api/v1/vectordb/search/{name}.
type searchRequest struct {
	// Text is the query to embed and match against stored questions.
	Text string `json:"text"`
	// Limit caps the number of results (default: 3).
	Limit int `json:"limit,omitempty"`
}

// searchResponse is the JSON response for POST /api/v1/vectordb/search/{name}.
type searchResponse struct {
	// Results holds the scored matches, highest similarity first.
	Results []searchResult `json:"results"`
}

// searchResult is one scored match in a search response.
type searchResult struct {
	// Score is the cosine similarity of the match.
	Score float32 `json:"score"`
	// Question is the stored question text.
	Question string `json:"question"`
	// Answer is the stored answer text.
	Answer string `json:"answer"`
	// ID is the point id within the collection.
	ID int64 `json:"id"`
}
