package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bankbot/aicore/internal/embedder"
	"github.com/bankbot/aicore/internal/ingest"
	"github.com/bankbot/aicore/internal/logging"
)

// NewIngestCmd constructs the `aicore ingest` command, which loads a QA
// dataset file into the vector store synchronously, without going through
// the HTTP server.
func NewIngestCmd() *cobra.Command {
	var collection string
	var batchSize int

	cmd := &cobra.Command{
		Use:   "ingest [dataset.json]",
		Short: "Load a QA dataset file into the vector store",
		Long: `Load a question/answer dataset into the Qdrant vector store.

The dataset is a JSON array of records with "prompt" and "completion"
conversation turns; the first user turn becomes the indexed question and the
first assistant turn the stored answer. The target collection is REPLACED:
any existing collection of the same name is deleted first.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  aicore ingest data/banking_qa.json
  aicore ingest --collection faq data/faq.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			qs, err := buildQdrantStore(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer qs.Close()

			pipeline, err := ingest.NewPipeline(emb, qs, &ingest.Config{
				VectorSize: uint64(embedder.DefaultDimensions()), //nolint:gosec // dimensions are bounded
				BatchSize:  batchSize,
				Logger:     logging.Component(log, "ingest"),
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			count, info, err := pipeline.IngestFile(ctx, args[0], collection)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingestion complete",
				slog.String("collection", info.Name),
				slog.Int("uploaded", count),
				slog.Uint64("vectors_count", info.VectorsCount),
				slog.String("status", info.Status),
			)
			fmt.Printf("loaded %d pairs into collection %q\n", count, info.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "qa_collection", "Target collection name (replaced if it exists)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "Points uploaded per batch")

	return cmd
}
