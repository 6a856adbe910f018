package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bankbot/aicore/internal/generator"
	"github.com/bankbot/aicore/internal/logging"
	"github.com/bankbot/aicore/internal/rag"
)

// NewAskCmd constructs the `aicore ask` command, which answers a single
// question from the terminal using the full retrieval pipeline.
func NewAskCmd() *cobra.Command {
	var collection string
	var topK int

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the banking assistant a question",
		Long: `Answer a single question using the retrieval-augmented pipeline.

The question is embedded, matched against the configured collection, and the
retrieved contexts are handed to the LLM for answer generation. Failures
degrade to the fixed fallback answer, exactly as the HTTP API does.

Examples:
  aicore ask "how do I reset my card PIN?"
  aicore ask --collection faq "what are the wire transfer fees?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			gen, err := generator.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			qs, err := buildQdrantStore(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer qs.Close()

			chain, err := rag.NewChain(&rag.ChainConfig{
				Embedder:   emb,
				Store:      qs,
				Generator:  gen,
				Collection: collection,
				TopK:       topK,
				Logger:     logging.Component(log, "rag"),
			})
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(chain.Answer(ctx, args[0]))
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "qa_collection", "Collection to retrieve context from")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 3, "Number of contexts to retrieve")

	return cmd
}
