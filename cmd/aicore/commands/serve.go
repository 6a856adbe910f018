package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/bankbot/aicore/internal/embedder"
	"github.com/bankbot/aicore/internal/generator"
	"github.com/bankbot/aicore/internal/ingest"
	"github.com/bankbot/aicore/internal/logging"
	"github.com/bankbot/aicore/internal/server"
	"github.com/bankbot/aicore/internal/task"
	"github.com/bankbot/aicore/internal/tracing"
)

// NewServeCmd constructs the `aicore serve` command, which starts the HTTP
// server exposing the answer and vector-database APIs.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var workers int
	var taskTTL time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the aicore HTTP server",
		Long: `Start the aicore HTTP server.

The server exposes the retrieval-augmented answer endpoint, the vector
database management API (dataset loading, collection inspection, raw
similarity search), health/readiness probes, and Prometheus metrics.

Examples:
  aicore serve
  aicore serve --port 9090
  MODEL_PROVIDER=openai aicore serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			gen, err := generator.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("generator initialised", slog.String("model", gen.Model()))

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			qs, err := buildQdrantStore(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer qs.Close()

			answers, closeAnswers := openAnswerLog(log)
			defer closeAnswers()

			tracker := task.NewMemoryTracker(&task.TrackerConfig{FinishedTTL: taskTTL})
			defer tracker.Close()

			pipeline, err := ingest.NewPipeline(emb, qs, &ingest.Config{
				VectorSize: uint64(embedder.DefaultDimensions()), //nolint:gosec // dimensions are bounded
				Logger:     logging.Component(log, "ingest"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create ingest pipeline: %w", err)
			}

			runner, err := task.NewRunner(tracker, pipeline.IngestFile, &task.RunnerConfig{
				PoolSize: workers,
				Logger:   logging.Component(log, "task"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create job runner: %w", err)
			}
			defer runner.Release()

			pingers := []server.Pinger{
				server.NewDependencyPinger(qs, "qdrant"),
			}
			// The Ollama embedder exposes a cheap version probe; cloud
			// embedders do not, so their readiness rides on the LLM probe.
			if p, ok := emb.(interface {
				Ping(ctx context.Context) error
			}); ok {
				pingers = append(pingers, server.NewDependencyPinger(p, "embedder"))
			}
			pingers = append(pingers, server.NewLLMPinger(gen))

			srv, err := server.New(&server.Deps{
				Embedder:  emb,
				Store:     qs,
				Generator: gen,
				Tracker:   tracker,
				Runner:    runner,
				Answers:   answers,
			}, &server.Config{
				Host:              host,
				Port:              port,
				DefaultCollection: getEnvOrDefault("QDRANT_COLLECTION", "qa_collection"),
				Logger:            log,
				Pingers:           pingers,
				APIKey:            os.Getenv("AICORE_API_KEY"),
			}, nil)
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().IntVar(&workers, "ingest-workers", 2, "Maximum concurrent background ingestion jobs")
	cmd.Flags().DurationVar(&taskTTL, "task-ttl", 0, "Evict finished ingestion tasks after this duration (0 keeps them forever)")

	return cmd
}
