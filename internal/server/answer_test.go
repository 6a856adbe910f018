package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bankbot/aicore/internal/rag"
	"github.com/bankbot/aicore/internal/store"
)

// postJSON performs a JSON POST against the server's full handler chain.
func postJSON(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// Test_Answer_HappyPath verifies a successful answer round-trip: 200 with the
// query echoed, the generated text, and the collection and model names.
func Test_Answer_HappyPath(t *testing.T) {
	t.Parallel()

	vstore := &fakeStore{points: []rag.ScoredPoint{
		{ID: 0, Question: "How do I open an account?", Answer: "Visit a branch.", Score: 0.91},
	}}
	s := newTestServer(t, &Deps{
		Store:     vstore,
		Generator: &fakeGenerator{response: "Visit any branch with your ID."},
	}, nil)

	rec := postJSON(t, s, "/api/v1/rag/answer", `{"text": "how to open an account"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var resp answerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Query != "how to open an account" {
		t.Errorf("query echo: got %q", resp.Query)
	}
	if resp.Answer != "Visit any branch with your ID." {
		t.Errorf("answer: got %q", resp.Answer)
	}
	if resp.Collection != "qa_collection" {
		t.Errorf("default collection: got %q", resp.Collection)
	}
	if resp.Model != "fake-model" {
		t.Errorf("model: got %q", resp.Model)
	}
}

// Test_Answer_MissingText verifies 400 for an absent or blank question.
func Test_Answer_MissingText(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil, nil)

	for _, body := range []string{`{}`, `{"text": "   "}`} {
		rec := postJSON(t, s, "/api/v1/rag/answer", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: want 400, got %d", body, rec.Code)
		}
	}
}

// Test_Answer_InvalidBody verifies 400 for malformed JSON.
func Test_Answer_InvalidBody(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil, nil)

	rec := postJSON(t, s, "/api/v1/rag/answer", `{"text": `)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("want 400, got %d", rec.Code)
	}
}

// Test_Answer_FallbackOnPipelineFailure verifies a generator failure still
// yields 200 with the fixed fallback answer rather than an error status.
func Test_Answer_FallbackOnPipelineFailure(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &Deps{
		Generator: &fakeGenerator{err: errors.New("model offline")},
	}, nil)

	rec := postJSON(t, s, "/api/v1/rag/answer", `{"text": "anything"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200 despite failure, got %d", rec.Code)
	}

	var resp answerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != rag.FallbackAnswer {
		t.Errorf("want fallback answer, got %q", resp.Answer)
	}
}

// Test_Answer_CollectionAndTopKOverride verifies per-request collection and
// top_k reach the vector store.
func Test_Answer_CollectionAndTopKOverride(t *testing.T) {
	t.Parallel()

	vstore := &fakeStore{}
	s := newTestServer(t, &Deps{Store: vstore}, nil)

	rec := postJSON(t, s, "/api/v1/rag/answer", `{"text": "q", "collection": "faq", "top_k": 5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", rec.Code)
	}
	if vstore.gotCollection != "faq" {
		t.Errorf("collection override: got %q", vstore.gotCollection)
	}
	if vstore.gotLimit != 5 {
		t.Errorf("top_k override: got %d", vstore.gotLimit)
	}
}

// Test_Answer_PersistsToAnswerLog verifies answered queries land in the
// answer log, fallbacks included.
func Test_Answer_PersistsToAnswerLog(t *testing.T) {
	t.Parallel()

	answers, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open answer log: %v", err)
	}
	t.Cleanup(func() { _ = answers.Close() })

	s := newTestServer(t, &Deps{
		Generator: &fakeGenerator{response: "logged answer"},
		Answers:   answers,
	}, nil)

	rec := postJSON(t, s, "/api/v1/rag/answer", `{"text": "will this be logged"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", rec.Code)
	}

	entries, err := answers.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("want 1 log entry, got %d", len(entries))
	}
	if entries[0].Query != "will this be logged" || entries[0].Answer != "logged answer" {
		t.Errorf("logged entry mismatch: %+v", entries[0])
	}
	if entries[0].Model != "fake-model" {
		t.Errorf("logged model: got %q", entries[0].Model)
	}
}
