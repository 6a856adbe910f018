package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bankbot/aicore/internal/rag"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// VectorSize is the dimensionality of the collection created for the
	// ingested vectors. Defaults to 384 if zero.
	VectorSize uint64

	// BatchSize is the number of (vector, payload) pairs uploaded per batch.
	// Defaults to 100 if zero.
	BatchSize int

	// Logger is the structured logger. Defaults to slog.Default if nil.
	Logger *slog.Logger
}

// Pipeline orchestrates the parse → embed → batch-upload flow for a QA
// dataset. A single Pipeline is safe for concurrent Ingest calls targeting
// different collections; concurrent ingestion into the SAME collection is
// unsafe because the destructive recreate step makes the last create win.
type Pipeline struct {
	// embedder converts question text into vectors.
	embedder rag.Embedder

	// store receives the collection and its batches.
	store rag.VectorStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingest: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingest: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.VectorSize == 0 {
		cfg.VectorSize = 384
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Pipeline{embedder: embedder, store: store, cfg: cfg}, nil
}

// IngestFile opens the dataset at path and runs Ingest over its contents.
func (p *Pipeline) IngestFile(ctx context.Context, path, collection string) (int, rag.CollectionInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, rag.CollectionInfo{}, fmt.Errorf("ingest: open dataset: %w", err)
	}
	defer f.Close()

	pairs, err := ParseDataset(f)
	if err != nil {
		return 0, rag.CollectionInfo{}, err
	}

	return p.Ingest(ctx, pairs, collection)
}

// Ingest replaces the named collection and uploads every pair in input order.
// Only the question text is embedded — retrieval matches on question
// similarity; the answer travels in the payload. Point ids are dense,
// zero-based, and monotonically increasing across batches.
//
// Returns the total uploaded count and the resulting collection summary.
// There is no partial-success contract: an upload failure partway through
// leaves the batches that already succeeded in place and returns an error.
func (p *Pipeline) Ingest(ctx context.Context, pairs []rag.QAPair, collection string) (int, rag.CollectionInfo, error) {
	log := p.cfg.Logger

	if err := p.store.RecreateCollection(ctx, collection, p.cfg.VectorSize); err != nil {
		return 0, rag.CollectionInfo{}, fmt.Errorf("ingest: recreate collection: %w", err)
	}

	log.Info("ingest: embedding and uploading QA pairs",
		slog.String("collection", collection),
		slog.Int("pairs", len(pairs)),
		slog.Int("batch_size", p.cfg.BatchSize),
	)

	var (
		batch    []rag.QAPair
		vectors  [][]float32
		uploaded int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.store.UpsertBatch(ctx, collection, int64(uploaded), batch, vectors); err != nil {
			return fmt.Errorf("ingest: upload batch starting at id %d: %w", uploaded, err)
		}
		uploaded += len(batch)
		batch = batch[:0]
		vectors = vectors[:0]
		return nil
	}

	for _, pair := range pairs {
		// Honor cancellation between items; the reference behavior has no
		// caller-triggered cancellation, but the job runner wires a context.
		if err := ctx.Err(); err != nil {
			return uploaded, rag.CollectionInfo{}, fmt.Errorf("ingest: cancelled after %d uploads: %w", uploaded, err)
		}

		embedded, err := p.embedder.Embed(ctx, []string{pair.Question})
		if err != nil {
			return uploaded, rag.CollectionInfo{}, fmt.Errorf("ingest: embed question: %w", err)
		}
		if len(embedded) == 0 {
			return uploaded, rag.CollectionInfo{}, fmt.Errorf("ingest: embedder returned no vector")
		}

		batch = append(batch, pair)
		vectors = append(vectors, embedded[0])

		if len(batch) >= p.cfg.BatchSize {
			if err := flush(); err != nil {
				return uploaded, rag.CollectionInfo{}, err
			}
		}
	}

	if err := flush(); err != nil {
		return uploaded, rag.CollectionInfo{}, err
	}

	info, err := p.store.CollectionInfo(ctx, collection)
	if err != nil {
		return uploaded, rag.CollectionInfo{}, fmt.Errorf("ingest: collection info: %w", err)
	}

	log.Info("ingest: upload complete",
		slog.String("collection", collection),
		slog.Int("uploaded", uploaded),
	)

	return uploaded, info, nil
}
