package task

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/bankbot/aicore/internal/rag"
)

// IngestFunc runs one ingestion job: load the dataset at path into the named
// collection. It returns the uploaded count and the resulting collection
// summary.
type IngestFunc func(ctx context.Context, path, collection string) (int, rag.CollectionInfo, error)

// Job is one unit of background ingestion work.
type Job struct {
	// TaskID is the tracker id the job reports into.
	TaskID string

	// DatasetPath is the temp file holding the uploaded dataset. The runner
	// deletes it when the job ends, on every path.
	DatasetPath string

	// Collection is the target collection name.
	Collection string
}

// Runner executes ingestion jobs on a bounded goroutine pool and reports
// their lifecycle into a Tracker.
type Runner struct {
	// pool bounds the number of concurrently running jobs.
	pool *ants.Pool

	// tracker receives status transitions.
	tracker Tracker

	// ingest performs the actual dataset load.
	ingest IngestFunc

	// log is the structured logger.
	log *slog.Logger

	// mu guards cancels.
	mu sync.Mutex

	// cancels maps in-flight task ids to their context cancel functions.
	cancels map[string]context.CancelFunc
}

// RunnerConfig holds the settings for constructing a Runner.
type RunnerConfig struct {
	// PoolSize is the maximum number of jobs running at once. Defaults to 2.
	PoolSize int

	// Logger is the structured logger. Defaults to slog.Default if nil.
	Logger *slog.Logger
}

// NewRunner constructs a Runner backed by an ants pool.
func NewRunner(tracker Tracker, ingest IngestFunc, cfg *RunnerConfig) (*Runner, error) {
	if tracker == nil {
		return nil, fmt.Errorf("task: tracker must not be nil")
	}
	if ingest == nil {
		return nil, fmt.Errorf("task: ingest func must not be nil")
	}
	if cfg == nil {
		cfg = &RunnerConfig{}
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	pool, err := ants.NewPool(cfg.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("task: create worker pool: %w", err)
	}

	return &Runner{
		pool:    pool,
		tracker: tracker,
		ingest:  ingest,
		log:     cfg.Logger,
		cancels: make(map[string]context.CancelFunc),
	}, nil
}

// Submit enqueues the job. The submitting handler returns immediately; the
// job transitions its task from queued through processing to a terminal
// state. A submission error (pool released) marks the task failed.
func (r *Runner) Submit(job Job) error {
	ctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	r.cancels[job.TaskID] = cancel
	r.mu.Unlock()

	err := r.pool.Submit(func() { r.run(ctx, job) })
	if err != nil {
		r.finish(job.TaskID, func(s *Status) {
			s.State = StateFailed
			s.Error = fmt.Sprintf("submit ingestion job: %v", err)
		})
		r.removeTempFile(job)
		return fmt.Errorf("task: submit job: %w", err)
	}
	return nil
}

// Cancel requests cancellation of an in-flight job. Best effort: the job
// stops at its next cancellation check, and work already uploaded stays in
// place. Returns false for unknown or already finished tasks.
func (r *Runner) Cancel(id string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[id]
	r.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Release shuts the pool down. Queued jobs that have not started are
// discarded; running jobs finish on their own.
func (r *Runner) Release() {
	r.pool.Release()
}

// run executes one job end to end, reporting transitions into the tracker.
func (r *Runner) run(ctx context.Context, job Job) {
	defer r.removeTempFile(job)

	log := r.log.With(
		slog.String("task_id", job.TaskID),
		slog.String("collection", job.Collection),
	)

	// Cancelled while still queued.
	if ctx.Err() != nil {
		log.Info("ingestion task cancelled before start")
		r.finish(job.TaskID, func(s *Status) { s.State = StateCancelled })
		return
	}

	r.tracker.Update(job.TaskID, func(s *Status) { s.State = StateProcessing })
	log.Info("ingestion task started")

	count, info, err := r.ingest(ctx, job.DatasetPath, job.Collection)
	switch {
	case ctx.Err() != nil:
		log.Info("ingestion task cancelled", slog.Int("uploaded", count))
		r.finish(job.TaskID, func(s *Status) { s.State = StateCancelled })
	case err != nil:
		log.Error("ingestion task failed", slog.String("error", err.Error()))
		r.finish(job.TaskID, func(s *Status) {
			s.State = StateFailed
			s.Error = err.Error()
		})
	default:
		log.Info("ingestion task completed", slog.Int("uploaded", count))
		r.finish(job.TaskID, func(s *Status) {
			s.State = StateCompleted
			s.VectorsCount = &count
			s.CollectionInfo = &info
		})
	}
}

// finish applies the terminal transition and drops the cancel entry.
func (r *Runner) finish(id string, mutate func(*Status)) {
	r.tracker.Update(id, mutate)

	r.mu.Lock()
	if cancel, ok := r.cancels[id]; ok {
		cancel()
		delete(r.cancels, id)
	}
	r.mu.Unlock()
}

// removeTempFile deletes the uploaded dataset file. Missing files are fine;
// anything else is logged and ignored.
func (r *Runner) removeTempFile(job Job) {
	if job.DatasetPath == "" {
		return
	}
	if err := os.Remove(job.DatasetPath); err != nil && !os.IsNotExist(err) {
		r.log.Warn("failed to remove uploaded dataset file",
			slog.String("task_id", job.TaskID),
			slog.String("path", job.DatasetPath),
			slog.String("error", err.Error()),
		)
	}
}
