package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// answerReq builds a minimal valid answer request, optionally authorized.
func answerReq(token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rag/answer", strings.NewReader(`{"text": "q"}`))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// Test_Auth_MissingToken verifies protected routes reject requests without an
// Authorization header when an API key is configured.
func Test_Auth_MissingToken(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, &Config{APIKey: "sekret"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, answerReq(""))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: want 401, got %d", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); !strings.Contains(got, "Bearer") {
		t.Errorf("WWW-Authenticate: got %q", got)
	}
}

// Test_Auth_WrongToken verifies an incorrect token is rejected.
func Test_Auth_WrongToken(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, &Config{APIKey: "sekret"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, answerReq("wrong"))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: want 401, got %d", rec.Code)
	}
}

// Test_Auth_ValidToken verifies a correct bearer token passes through.
func Test_Auth_ValidToken(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, &Config{APIKey: "sekret"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, answerReq("sekret"))

	if rec.Code != http.StatusOK {
		t.Errorf("status: want 200, got %d (%s)", rec.Code, rec.Body.String())
	}
}

// Test_Auth_HealthStaysOpen verifies operational routes bypass auth.
func Test_Auth_HealthStaysOpen(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, &Config{APIKey: "sekret"})

	for _, path := range []string{"/health", "/api/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: want 200 without token, got %d", path, rec.Code)
		}
	}
}

// Test_Auth_DisabledWhenNoKey verifies an empty API key disables auth.
func Test_Auth_DisabledWhenNoKey(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, answerReq(""))

	if rec.Code != http.StatusOK {
		t.Errorf("status: want 200 with auth disabled, got %d", rec.Code)
	}
}

// Test_BearerToken verifies header parsing corner cases.
func Test_BearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"Bearer  spaced ", "spaced"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		if got := bearerToken(req); got != tc.want {
			t.Errorf("header %q: want %q, got %q", tc.header, tc.want, got)
		}
	}
}
