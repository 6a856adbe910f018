package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultPromptTemplate is the prompt used when no custom template is
// configured. The {context} and {question} slots are substituted at answer
// time.
const DefaultPromptTemplate = `You are a helpful banking assistant. Use the following retrieved information to answer the user's question.
If you don't know the answer, just say that you don't know, don't try to make up an answer.

Retrieved information:
{context}

User Question: {question}

Your answer should be helpful, concise, accurate, and friendly.
`

// FallbackAnswer is returned to the caller whenever any step of the answering
// pipeline fails. Degrading to a fixed apology instead of an error response is
// deliberate: a chat surface should answer, not 500. The underlying cause is
// logged at ERROR so the failure stays observable.
const FallbackAnswer = "I'm sorry, I couldn't generate an answer due to an error."

// defaultTopK is the number of contexts retrieved when the caller passes 0.
const defaultTopK = 3

// Chain is the answering pipeline: embed the query, retrieve the top-K most
// similar stored QA pairs, render them into the prompt template, and ask the
// Generator for the final answer.
type Chain struct {
	// embedder converts the live query into a vector.
	embedder Embedder

	// store answers the nearest-neighbor search.
	store VectorStore

	// generator produces the final answer text.
	generator Generator

	// collection is the collection queried for context.
	collection string

	// template is the prompt template with {context} and {question} slots.
	template string

	// topK is the number of contexts to retrieve per query.
	topK int

	// log is the structured logger for pipeline events.
	log *slog.Logger
}

// ChainConfig holds the settings for constructing a Chain.
type ChainConfig struct {
	// Embedder converts query text to a vector. Required.
	Embedder Embedder

	// Store performs the similarity search. Required.
	Store VectorStore

	// Generator produces the answer. Required.
	Generator Generator

	// Collection is the collection to query. Required.
	Collection string

	// Template overrides DefaultPromptTemplate when non-empty.
	Template string

	// TopK is the number of contexts to retrieve (default: 3).
	TopK int

	// Logger is the structured logger. Defaults to slog.Default if nil.
	Logger *slog.Logger
}

// NewChain constructs a Chain from the given config.
func NewChain(cfg *ChainConfig) (*Chain, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("rag: generator must not be nil")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("rag: collection must not be empty")
	}
	template := cfg.Template
	if template == "" {
		template = DefaultPromptTemplate
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Chain{
		embedder:   cfg.Embedder,
		store:      cfg.Store,
		generator:  cfg.Generator,
		collection: cfg.Collection,
		template:   template,
		topK:       topK,
		log:        log,
	}, nil
}

// Answer runs the full pipeline for query and returns the generated text
// verbatim. On any internal failure it returns FallbackAnswer instead of an
// error; the caller always gets a usable sentence.
func (c *Chain) Answer(ctx context.Context, query string) string {
	answer, err := c.answer(ctx, query)
	if err != nil {
		c.log.Error("rag: answer pipeline failed",
			slog.String("collection", c.collection),
			slog.Any("error", err),
		)
		return FallbackAnswer
	}
	return answer
}

// answer is the fallible pipeline body; Answer wraps it with the fallback.
func (c *Chain) answer(ctx context.Context, query string) (string, error) {
	contexts, err := c.retrieve(ctx, query)
	if err != nil {
		return "", err
	}

	prompt := c.renderPrompt(contexts, query)

	answer, err := c.generator.Complete(ctx, []Message{
		{Role: RoleUser, Content: prompt},
	})
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	return answer, nil
}

// retrieve embeds the query and returns the topK nearest stored points.
func (c *Chain) retrieve(ctx context.Context, query string) ([]ScoredPoint, error) {
	vectors, err := c.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query failed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}

	points, err := c.store.Search(ctx, c.collection, vectors[0], c.topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	return points, nil
}

// renderPrompt fills the template's {context} and {question} slots.
func (c *Chain) renderPrompt(contexts []ScoredPoint, question string) string {
	prompt := strings.ReplaceAll(c.template, "{context}", FormatContexts(contexts))
	return strings.ReplaceAll(prompt, "{question}", question)
}

// FormatContexts renders retrieved points as numbered context blocks joined
// by blank lines, with scores fixed to four decimal places:
//
//	[Context 1]
//	Question: ...
//	Answer: ...
//	Relevance Score: 0.9123
func FormatContexts(contexts []ScoredPoint) string {
	blocks := make([]string, 0, len(contexts))
	for i, ctx := range contexts {
		blocks = append(blocks, fmt.Sprintf(
			"[Context %d]\nQuestion: %s\nAnswer: %s\nRelevance Score: %.4f",
			i+1, ctx.Question, ctx.Answer, ctx.Score,
		))
	}
	return strings.Join(blocks, "\n\n")
}
