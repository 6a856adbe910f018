package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bankbot/aicore/internal/logging"
)

// NewSearchCmd constructs the `aicore search` command, which runs a raw
// similarity search and prints the scored matches without calling the LLM.
func NewSearchCmd() *cobra.Command {
	var collection string
	var limit int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a raw similarity search against a collection",
		Long: `Embed the query and print the most similar stored QA pairs.

No LLM is involved — this shows exactly what retrieval would feed the answer
pipeline, which makes it the fastest way to debug a bad answer.

Examples:
  aicore search "lost my debit card"
  aicore search --collection faq --limit 5 "transfer limits"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			qs, err := buildQdrantStore(log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer qs.Close()

			vectors, err := emb.Embed(ctx, []string{args[0]})
			if err != nil || len(vectors) == 0 {
				return fmt.Errorf("search: embedding query failed: %w", err)
			}

			points, err := qs.Search(ctx, collection, vectors[0], limit)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if len(points) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for i, p := range points {
				fmt.Printf("%d. [%.4f] (id %d)\n   Q: %s\n   A: %s\n", i+1, p.Score, p.ID, p.Question, p.Answer)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "qa_collection", "Collection to search")
	cmd.Flags().IntVarP(&limit, "limit", "l", 3, "Maximum number of matches to print")

	return cmd
}
