package server

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bankbot/aicore/internal/rag"
	"github.com/bankbot/aicore/internal/task"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeEmbedder returns a fixed vector per input text.
type fakeEmbedder struct {
	// err, when set, is returned from every Embed call.
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

// fakeStore is a canned VectorStore that records search arguments.
type fakeStore struct {
	// points are returned from every Search call.
	points []rag.ScoredPoint
	// searchErr, when set, is returned from Search.
	searchErr error
	// names are returned from ListCollections.
	names []string
	// info is returned from CollectionInfo when infoErr is nil.
	info rag.CollectionInfo
	// infoErr, when set, is returned from CollectionInfo.
	infoErr error
	// gotCollection records the last collection passed to Search.
	gotCollection string
	// gotLimit records the last limit passed to Search.
	gotLimit int
}

func (f *fakeStore) RecreateCollection(context.Context, string, uint64) error { return nil }

func (f *fakeStore) UpsertBatch(context.Context, string, int64, []rag.QAPair, [][]float32) error {
	return nil
}

func (f *fakeStore) Search(_ context.Context, collection string, _ []float32, limit int) ([]rag.ScoredPoint, error) {
	f.gotCollection = collection
	f.gotLimit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.points, nil
}

func (f *fakeStore) CollectionInfo(_ context.Context, name string) (rag.CollectionInfo, error) {
	if f.infoErr != nil {
		return rag.CollectionInfo{}, f.infoErr
	}
	return f.info, nil
}

func (f *fakeStore) ListCollections(context.Context) ([]string, error) {
	return f.names, nil
}

func (f *fakeStore) Close() error { return nil }

// fakeGenerator returns a canned response.
type fakeGenerator struct {
	// response is returned from Complete when err is nil.
	response string
	// err, when set, is returned from Complete.
	err error
}

func (f *fakeGenerator) Complete(context.Context, []rag.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeGenerator) Model() string { return "fake-model" }

// ---------------------------------------------------------------------------
// Construction helpers
// ---------------------------------------------------------------------------

// discardLogger returns a logger that drops everything, keeping test output clean.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// okIngest is an IngestFunc that reports a small successful load.
func okIngest(_ context.Context, _, collection string) (int, rag.CollectionInfo, error) {
	return 2, rag.CollectionInfo{Name: collection, VectorsCount: 2, Status: "green"}, nil
}

// newTestServer builds a Server over the given fakes with a fresh metrics
// registry. Nil dependency fields get working defaults; cfg may be nil.
func newTestServer(t *testing.T, deps *Deps, cfg *Config) *Server {
	t.Helper()

	if deps == nil {
		deps = &Deps{}
	}
	if deps.Embedder == nil {
		deps.Embedder = &fakeEmbedder{}
	}
	if deps.Store == nil {
		deps.Store = &fakeStore{}
	}
	if deps.Generator == nil {
		deps.Generator = &fakeGenerator{response: "canned answer"}
	}
	if deps.Tracker == nil {
		deps.Tracker = task.NewMemoryTracker(nil)
	}
	if deps.Runner == nil {
		runner, err := task.NewRunner(deps.Tracker, okIngest, &task.RunnerConfig{Logger: discardLogger()})
		if err != nil {
			t.Fatalf("NewRunner: %v", err)
		}
		t.Cleanup(runner.Release)
		deps.Runner = runner
	}

	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}

	s, err := New(deps, cfg, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s
}
