// Package task tracks the status of background ingestion jobs and runs them
// on a bounded worker pool. The tracker is the only state an HTTP caller can
// poll after the 202 response; it is process-local with no persistence or
// cross-process visibility.
package task

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bankbot/aicore/internal/rag"
)

// ErrNotFound is returned by Get for an unknown task id.
var ErrNotFound = errors.New("task not found")

// State is the lifecycle state of an ingestion task.
type State string

const (
	// StateQueued means the task is accepted but not yet started.
	StateQueued State = "queued"
	// StateProcessing means the background job is running.
	StateProcessing State = "processing"
	// StateCompleted means the job finished and the counts are final.
	StateCompleted State = "completed"
	// StateFailed means the job aborted; Error carries the reason.
	StateFailed State = "failed"
	// StateCancelled means the job was cancelled before completing.
	StateCancelled State = "cancelled"
)

// terminal reports whether a state will never change again.
func (s State) terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Status is the caller-visible record of one ingestion task. Only the current
// status is observable; no history is retained.
type Status struct {
	// State is the current lifecycle state.
	State State `json:"status"`

	// VectorsCount is the number of vectors uploaded. Set on completion.
	VectorsCount *int `json:"vectors_count,omitempty"`

	// CollectionInfo is the resulting collection summary. Set on completion.
	CollectionInfo *rag.CollectionInfo `json:"collection_info,omitempty"`

	// Error is the failure reason. Set when State is failed.
	Error string `json:"error,omitempty"`
}

// Tracker records ingestion-task status for polling. Implementations must be
// safe for concurrent use: background jobs write while status polls read.
type Tracker interface {
	// Create registers a fresh task in the queued state and returns its id.
	Create() string

	// Update applies mutate to the task's status under the tracker's lock,
	// merging changes into the stored record. Unknown ids are ignored —
	// a finished job racing a TTL eviction must not error.
	Update(id string, mutate func(*Status))

	// Get returns the current status of the task, or ErrNotFound.
	Get(id string) (Status, error)
}

// MemoryTracker is an in-memory Tracker backed by a mutex-guarded map.
//
// By default entries live for the whole process — tasks are never deleted, so
// the map grows without bound under sustained load. That matches the
// reference behavior; operators who care can enable TTL eviction of finished
// tasks via FinishedTTL.
type MemoryTracker struct {
	// mu guards tasks.
	mu sync.Mutex

	// tasks maps task id to its current status plus eviction bookkeeping.
	tasks map[string]*trackedTask

	// finishedTTL is how long terminal tasks are retained; zero disables
	// eviction entirely.
	finishedTTL time.Duration

	// stop terminates the eviction goroutine; nil when eviction is disabled.
	stop func()
}

// trackedTask pairs a status with the time it reached a terminal state.
type trackedTask struct {
	status     Status
	finishedAt time.Time
}

// TrackerConfig holds the settings for constructing a MemoryTracker.
type TrackerConfig struct {
	// FinishedTTL enables eviction of completed/failed/cancelled tasks after
	// the given duration. Zero keeps every task for the process lifetime
	// (reference behavior — unbounded growth).
	FinishedTTL time.Duration
}

// NewMemoryTracker constructs a MemoryTracker. When cfg enables a TTL the
// returned tracker runs a background eviction loop; call Close on shutdown.
func NewMemoryTracker(cfg *TrackerConfig) *MemoryTracker {
	if cfg == nil {
		cfg = &TrackerConfig{}
	}

	t := &MemoryTracker{
		tasks:       make(map[string]*trackedTask),
		finishedTTL: cfg.FinishedTTL,
	}

	if t.finishedTTL > 0 {
		stopCh := make(chan struct{})
		t.stop = func() { close(stopCh) }
		go t.evictLoop(stopCh)
	}

	return t
}

// Create registers a fresh task in the queued state and returns its id.
func (t *MemoryTracker) Create() string {
	id := uuid.NewString()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks[id] = &trackedTask{status: Status{State: StateQueued}}

	return id
}

// Update applies mutate to the stored status under the lock. Unknown ids are
// ignored.
func (t *MemoryTracker) Update(id string, mutate func(*Status)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tasks[id]
	if !ok {
		return
	}
	mutate(&entry.status)
	if entry.status.State.terminal() && entry.finishedAt.IsZero() {
		entry.finishedAt = time.Now()
	}
}

// Get returns the current status of the task, or ErrNotFound.
func (t *MemoryTracker) Get(id string) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tasks[id]
	if !ok {
		return Status{}, ErrNotFound
	}
	return entry.status, nil
}

// Close stops the eviction goroutine if one is running.
func (t *MemoryTracker) Close() {
	if t.stop != nil {
		t.stop()
	}
}

// evictLoop periodically removes terminal tasks older than finishedTTL.
func (t *MemoryTracker) evictLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			t.evict()
		}
	}
}

// evict removes terminal tasks whose retention window has passed.
func (t *MemoryTracker) evict() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-t.finishedTTL)
	for id, entry := range t.tasks {
		if entry.status.State.terminal() && !entry.finishedAt.IsZero() && entry.finishedAt.Before(cutoff) {
			delete(t.tasks, id)
		}
	}
}
