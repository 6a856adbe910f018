package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"
)

// ErrCollectionNotFound is returned by CollectionInfo when the named
// collection does not exist in the store.
var ErrCollectionNotFound = errors.New("collection not found")

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// Logger is the structured logger for store events. Defaults to
	// slog.Default if nil.
	Logger *slog.Logger
}

// QdrantStore implements VectorStore backed by a Qdrant instance. Unlike a
// single-collection retriever, the store is collection-agnostic: every call
// names its target collection, because ingestion creates collections on
// demand.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// log is the structured logger for store events.
	log *slog.Logger
}

// NewQdrantStore creates a QdrantStore connected to the configured instance.
// No collection is created here — ingestion owns collection lifecycle.
func NewQdrantStore(cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantStore{client: client, log: cfg.Logger}, nil
}

// RecreateCollection creates the named collection with cosine distance,
// deleting any existing collection of the same name first. The replace is not
// transactional: a crash between delete and the final upload leaves the
// collection empty or partially populated.
func (s *QdrantStore) RecreateCollection(ctx context.Context, name string, vectorSize uint64) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		s.log.Warn("qdrant: dropping existing collection for full replace",
			slog.String("collection", name),
		)
		if err := s.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("qdrant: failed to delete collection %q: %w", name, err)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", name, err)
	}

	s.log.Info("qdrant: collection created",
		slog.String("collection", name),
		slog.Uint64("vector_size", vectorSize),
	)
	return nil
}

// UpsertBatch stores a batch of QA pairs with their embeddings. Point ids run
// startID..startID+len(pairs)-1 so ids stay dense and ordered across batches
// of the same ingestion job.
func (s *QdrantStore) UpsertBatch(ctx context.Context, name string, startID int64, pairs []QAPair, vectors [][]float32) error {
	if len(pairs) != len(vectors) {
		return fmt.Errorf("qdrant: %d pairs but %d vectors", len(pairs), len(vectors))
	}

	points := make([]*qdrant.PointStruct, 0, len(pairs))
	for i, pair := range pairs {
		id := startID + int64(i)
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(id)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"question": pair.Question,
				"answer":   pair.Answer,
				"id":       id,
			}),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert into %q failed: %w", name, err)
	}

	return nil
}

// Search performs a cosine similarity search in the named collection and
// returns at most limit hits ranked by descending score. Tie order among
// equal scores is whatever Qdrant returns.
func (s *QdrantStore) Search(ctx context.Context, name string, vector []float32, limit int) ([]ScoredPoint, error) {
	lim := uint64(limit)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search in %q failed: %w", name, err)
	}

	points := make([]ScoredPoint, 0, len(results))
	for _, r := range results {
		p := ScoredPoint{Score: r.Score}
		if payload := r.Payload; payload != nil {
			if v, ok := payload["question"]; ok {
				p.Question = v.GetStringValue()
			}
			if v, ok := payload["answer"]; ok {
				p.Answer = v.GetStringValue()
			}
			if v, ok := payload["id"]; ok {
				p.ID = v.GetIntegerValue()
			}
		}
		points = append(points, p)
	}

	return points, nil
}

// CollectionInfo returns the summary of the named collection. Returns
// ErrCollectionNotFound (wrapped) when the collection does not exist.
func (s *QdrantStore) CollectionInfo(ctx context.Context, name string) (CollectionInfo, error) {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if !exists {
		return CollectionInfo{}, fmt.Errorf("qdrant: %q: %w", name, ErrCollectionNotFound)
	}

	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("qdrant: failed to get info for %q: %w", name, err)
	}

	out := CollectionInfo{Name: name, Status: info.GetStatus().String()}
	if c := info.GetPointsCount(); c != 0 {
		out.VectorsCount = c
	}
	return out, nil
}

// ListCollections returns the names of all collections in the store.
func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to list collections: %w", err)
	}
	return names, nil
}

// Ping calls the Qdrant HealthCheck RPC. Used by the readiness endpoint.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
