// Package rag defines the contracts for the retrieval-augmented answering
// service: text embedding, vector storage, and chat generation. Concrete
// implementations (Qdrant, Ollama, eino-backed chat models) satisfy these
// interfaces so the pipelines and HTTP handlers never depend on a specific
// backend.
package rag

import (
	"context"
)

// QAPair is one question/answer record extracted from an ingestion dataset.
// Immutable once produced by the parser.
type QAPair struct {
	// Question is the first user-role prompt turn of the source record.
	Question string

	// Answer is the first assistant-role completion turn of the source record.
	Answer string
}

// ScoredPoint is a single vector search hit: the stored QA payload plus the
// similarity score assigned by the store.
type ScoredPoint struct {
	// ID is the dense zero-based point id assigned at upload time.
	ID int64

	// Question is the stored question text.
	Question string

	// Answer is the stored answer text.
	Answer string

	// Score is the cosine similarity of this point to the query vector.
	Score float32
}

// CollectionInfo is the summary of a vector store collection.
type CollectionInfo struct {
	// Name is the collection name.
	Name string `json:"name"`

	// VectorsCount is the number of stored vectors.
	VectorsCount uint64 `json:"vectors_count"`

	// Status is the store-reported collection status (e.g. "green").
	Status string `json:"status,omitempty"`
}

// Role identifies the author of a chat message sent to the Generator.
type Role string

const (
	// RoleSystem is an instruction message.
	RoleSystem Role = "system"
	// RoleUser is an end-user message.
	RoleUser Role = "user"
	// RoleAssistant is a model-produced message.
	RoleAssistant Role = "assistant"
)

// Message is the single normalized chat message shape accepted by the
// Generator. Callers must build messages in this form up front; the Generator
// performs no shape sniffing.
type Message struct {
	// Role is the message author.
	Role Role

	// Content is the message text.
	Content string
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists (vector, payload) pairs in named collections and
// answers nearest-neighbor queries. Implementations must be safe to call from
// multiple goroutines.
type VectorStore interface {
	// RecreateCollection creates the named collection with the given vector
	// dimensionality and cosine distance. Any existing collection with the
	// same name is deleted first — this is a destructive full replace.
	RecreateCollection(ctx context.Context, name string, vectorSize uint64) error

	// UpsertBatch stores a batch of QA pairs with their pre-computed
	// embeddings. Point ids are assigned as startID, startID+1, ... in slice
	// order; vectors[i] is the embedding for pairs[i].
	UpsertBatch(ctx context.Context, name string, startID int64, pairs []QAPair, vectors [][]float32) error

	// Search returns at most limit points ranked by descending cosine
	// similarity to the query vector.
	Search(ctx context.Context, name string, vector []float32, limit int) ([]ScoredPoint, error)

	// CollectionInfo returns the summary of the named collection.
	CollectionInfo(ctx context.Context, name string) (CollectionInfo, error)

	// ListCollections returns the names of all collections in the store.
	ListCollections(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// Generator produces text from a list of role-tagged chat messages.
// Implementations must be safe to call from multiple goroutines.
type Generator interface {
	// Complete sends the messages to the hosted model and returns the
	// generated text.
	Complete(ctx context.Context, messages []Message) (string, error)

	// Model returns the model identifier used for responses and logging.
	Model() string
}
