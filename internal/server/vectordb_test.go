package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bankbot/aicore/internal/rag"
	"github.com/bankbot/aicore/internal/task"
)

// multipartUpload builds a dataset upload request for the load route.
func multipartUpload(t *testing.T, filename, collection, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if collection != "" {
		if err := mw.WriteField("collection_name", collection); err != nil {
			t.Fatalf("write collection field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vectordb/load", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// pollTask polls the task route until the task reaches a terminal state.
func pollTask(t *testing.T, s *Server, id string) map[string]any {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/vectordb/task/"+id, nil)
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("task poll: want 200, got %d", rec.Code)
		}

		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode task status: %v", err)
		}
		switch body["status"] {
		case "completed", "failed", "cancelled":
			return body
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("task never reached a terminal state")
	return nil
}

// Test_Load_AcceptsAndCompletes verifies the asynchronous load contract:
// 202 with a queued task id, then a completed status carrying the counts,
// with the buffered upload file removed afterwards.
func Test_Load_AcceptsAndCompletes(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		gotPath string
		gotColl string
	)
	tracker := task.NewMemoryTracker(nil)
	ingest := func(_ context.Context, path, collection string) (int, rag.CollectionInfo, error) {
		mu.Lock()
		gotPath, gotColl = path, collection
		mu.Unlock()
		return 3, rag.CollectionInfo{Name: collection, VectorsCount: 3, Status: "green"}, nil
	}
	runner, err := task.NewRunner(tracker, ingest, &task.RunnerConfig{Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	t.Cleanup(runner.Release)

	s := newTestServer(t, &Deps{Tracker: tracker, Runner: runner}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, multipartUpload(t, "dataset.json", "faq", `[]`))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: want 202, got %d (%s)", rec.Code, rec.Body.String())
	}

	var resp loadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TaskID == "" {
		t.Fatal("want non-empty task_id")
	}
	if resp.Status != "queued" {
		t.Errorf("initial status: want queued, got %q", resp.Status)
	}

	status := pollTask(t, s, resp.TaskID)
	if status["status"] != "completed" {
		t.Fatalf("terminal status: want completed, got %v", status)
	}
	if status["vectors_count"] != float64(3) {
		t.Errorf("vectors_count: got %v", status["vectors_count"])
	}

	mu.Lock()
	path, coll := gotPath, gotColl
	mu.Unlock()
	if coll != "faq" {
		t.Errorf("collection: want faq, got %q", coll)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected buffered upload removed, stat err=%v", err)
	}
}

// Test_Load_DefaultCollection verifies an omitted collection_name falls back
// to qa_collection.
func Test_Load_DefaultCollection(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		gotColl string
	)
	tracker := task.NewMemoryTracker(nil)
	ingest := func(_ context.Context, _, collection string) (int, rag.CollectionInfo, error) {
		mu.Lock()
		gotColl = collection
		mu.Unlock()
		return 0, rag.CollectionInfo{Name: collection}, nil
	}
	runner, err := task.NewRunner(tracker, ingest, &task.RunnerConfig{Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	t.Cleanup(runner.Release)

	s := newTestServer(t, &Deps{Tracker: tracker, Runner: runner}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, multipartUpload(t, "data.json", "", `[]`))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: want 202, got %d", rec.Code)
	}

	var resp loadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	pollTask(t, s, resp.TaskID)

	mu.Lock()
	defer mu.Unlock()
	if gotColl != "qa_collection" {
		t.Errorf("default collection: got %q", gotColl)
	}
}

// Test_Load_RejectsNonJSON verifies a non-.json filename is rejected with 400
// before any task is created.
func Test_Load_RejectsNonJSON(t *testing.T) {
	t.Parallel()

	tracker := task.NewMemoryTracker(nil)
	s := newTestServer(t, &Deps{Tracker: tracker}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, multipartUpload(t, "dataset.csv", "faq", "a,b"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: want 400, got %d", rec.Code)
	}
}

// Test_Load_FailedIngestReportsError verifies a failing job surfaces through
// the task route with the failure reason, not through the load response.
func Test_Load_FailedIngestReportsError(t *testing.T) {
	t.Parallel()

	tracker := task.NewMemoryTracker(nil)
	ingest := func(context.Context, string, string) (int, rag.CollectionInfo, error) {
		return 0, rag.CollectionInfo{}, os.ErrPermission
	}
	runner, err := task.NewRunner(tracker, ingest, &task.RunnerConfig{Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	t.Cleanup(runner.Release)

	s := newTestServer(t, &Deps{Tracker: tracker, Runner: runner}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, multipartUpload(t, "dataset.json", "faq", `[]`))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: want 202 even for a job that will fail, got %d", rec.Code)
	}

	var resp loadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	status := pollTask(t, s, resp.TaskID)
	if status["status"] != "failed" {
		t.Fatalf("terminal status: want failed, got %v", status)
	}
	if status["error"] == "" || status["error"] == nil {
		t.Error("want failure reason in task status")
	}
}

// Test_Task_Unknown verifies 404 for an unknown task id.
func Test_Task_Unknown(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/vectordb/task/no-such-task", nil)
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: want 404, got %d", rec.Code)
	}
}

// Test_Collections_List verifies the collections listing shape.
func Test_Collections_List(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &Deps{Store: &fakeStore{names: []string{"qa_collection", "faq"}}}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/vectordb/collections", nil)
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", rec.Code)
	}

	var resp collectionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Collections) != 2 {
		t.Fatalf("want 2 collections, got %d", len(resp.Collections))
	}
	if resp.Collections[0].Name != "qa_collection" || resp.Collections[1].Name != "faq" {
		t.Errorf("collections: %+v", resp.Collections)
	}
}

// Test_CollectionInfo verifies the summary route and its 404 behavior.
func Test_CollectionInfo(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &Deps{Store: &fakeStore{
		info: rag.CollectionInfo{Name: "faq", VectorsCount: 12, Status: "green"},
	}}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/vectordb/collection/faq", nil)
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", rec.Code)
	}

	var info rag.CollectionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if info.Name != "faq" || info.VectorsCount != 12 || info.Status != "green" {
		t.Errorf("collection info: %+v", info)
	}
}

// Test_CollectionInfo_NotFound verifies 404 for a missing collection.
func Test_CollectionInfo_NotFound(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &Deps{Store: &fakeStore{infoErr: rag.ErrCollectionNotFound}}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/vectordb/collection/nope", nil)
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: want 404, got %d", rec.Code)
	}
}

// Test_Search verifies the raw search route: results shape and the default
// limit of 3.
func Test_Search(t *testing.T) {
	t.Parallel()

	vstore := &fakeStore{points: []rag.ScoredPoint{
		{ID: 4, Question: "q", Answer: "a", Score: 0.8},
	}}
	s := newTestServer(t, &Deps{Store: vstore}, nil)

	rec := postJSON(t, s, "/api/v1/vectordb/search/faq", `{"text": "query"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var resp searchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("want 1 result, got %d", len(resp.Results))
	}
	got := resp.Results[0]
	if got.ID != 4 || got.Question != "q" || got.Answer != "a" || got.Score != 0.8 {
		t.Errorf("result: %+v", got)
	}
	if vstore.gotCollection != "faq" {
		t.Errorf("collection: got %q", vstore.gotCollection)
	}
	if vstore.gotLimit != 3 {
		t.Errorf("default limit: want 3, got %d", vstore.gotLimit)
	}
}

// Test_Search_MissingText verifies 400 when the query text is absent.
func Test_Search_MissingText(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil, nil)

	rec := postJSON(t, s, "/api/v1/vectordb/search/faq", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: want 400, got %d", rec.Code)
	}
}
