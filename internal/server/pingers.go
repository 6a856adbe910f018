package server

import (
	"context"
	"fmt"

	"github.com/bankbot/aicore/internal/rag"
)

// reachable is implemented by dependencies that expose a native
// reachability probe (the Qdrant store and the Ollama embedder both do).
type reachable interface {
	Ping(ctx context.Context) error
}

// Pinger is the interface implemented by any dependency that can report its
// own reachability. Each implementation must return nil when the dependency
// is healthy and a descriptive error otherwise.
// Implementations must be safe to call from multiple goroutines.
type Pinger interface {
	// Ping checks whether the dependency is reachable within the given context.
	// Returns nil on success, a descriptive error on failure.
	Ping(ctx context.Context) error

	// Name returns a short human-readable label used in readiness responses
	// (e.g. "qdrant", "embedder").
	Name() string
}

// DependencyPinger adapts any reachable dependency into a named Pinger for
// GET /api/ready.
type DependencyPinger struct {
	// dep is the dependency to probe.
	dep reachable
	// name identifies the dependency in readiness responses.
	name string
}

// NewDependencyPinger constructs a DependencyPinger for the given dependency
// and label.
func NewDependencyPinger(dep reachable, name string) *DependencyPinger {
	return &DependencyPinger{dep: dep, name: name}
}

// Name returns the dependency label used in readiness responses.
func (p *DependencyPinger) Name() string { return p.name }

// Ping delegates to the dependency's own reachability probe.
func (p *DependencyPinger) Ping(ctx context.Context) error {
	if err := p.dep.Ping(ctx); err != nil {
		return fmt.Errorf("%s unreachable: %w", p.name, err)
	}
	return nil
}

// LLMPinger probes the generation backend by sending a minimal generate
// request. This consumes a handful of tokens per probe; readiness checks are
// expected to be infrequent.
type LLMPinger struct {
	// gen is the generator to probe.
	gen rag.Generator
}

// NewLLMPinger constructs an LLMPinger for the given generator.
func NewLLMPinger(gen rag.Generator) *LLMPinger {
	return &LLMPinger{gen: gen}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return "llm" }

// Ping sends a one-word prompt and checks a response comes back.
func (p *LLMPinger) Ping(ctx context.Context) error {
	_, err := p.gen.Complete(ctx, []rag.Message{
		{Role: rag.RoleUser, Content: "ping"},
	})
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	return nil
}
