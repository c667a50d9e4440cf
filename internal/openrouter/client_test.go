package openrouter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/passionapp/passionbot/internal/config"
	"github.com/passionapp/passionbot/internal/database"
)

func testClient(t *testing.T, baseURL string) Client {
	t.Helper()

	cfg := &config.Config{
		AIToken:       "test-key",
		AIBaseURL:     baseURL,
		AIModel:       "test-model",
		AIMaxTokens:   512,
		AITemperature: 0.9,
		AITimeout:     5 * time.Second,
		AIReferer:     "https://example.test",
		AITitle:       "Test Bot",
	}

	client, err := NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func completionBody(content string) string {
	return `{"choices":[{"message":{"role":"assistant","content":` + mustJSON(content) + `}}]}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestCompleteSuccess(t *testing.T) {
	t.Parallel()

	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("request path = %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("HTTP-Referer"); got != "https://example.test" {
			t.Errorf("HTTP-Referer = %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "Test Bot" {
			t.Errorf("X-Title = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionBody("Hello back!"))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	history := []database.HistoryEntry{
		{Role: database.RoleUser, Content: "earlier"},
		{Role: database.RoleAssistant, Content: "reply"},
	}

	text, err := client.Complete(t.Context(), "You are a test persona.", history, "Hi")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "Hello back!" {
		t.Errorf("Complete() = %q, want %q", text, "Hello back!")
	}

	if gotReq.Model != "test-model" {
		t.Errorf("model = %q, want %q", gotReq.Model, "test-model")
	}
	if gotReq.MaxTokens != 512 || gotReq.Temperature != 0.9 {
		t.Errorf("sampling params = (%d, %v), want (512, 0.9)", gotReq.MaxTokens, gotReq.Temperature)
	}

	wantRoles := []string{"system", "user", "assistant", "user"}
	if len(gotReq.Messages) != len(wantRoles) {
		t.Fatalf("sent %d messages, want %d: %+v", len(gotReq.Messages), len(wantRoles), gotReq.Messages)
	}
	for i, role := range wantRoles {
		if gotReq.Messages[i].Role != role {
			t.Errorf("message %d role = %q, want %q", i, gotReq.Messages[i].Role, role)
		}
	}
	if gotReq.Messages[len(gotReq.Messages)-1].Content != "Hi" {
		t.Errorf("final message = %q, want the user message", gotReq.Messages[len(gotReq.Messages)-1].Content)
	}
}

func TestCompleteRateLimited(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.Complete(t.Context(), "prompt", nil, "Hi")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Complete() error = %v, want ErrRateLimited", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d requests, rate limits must not be retried", calls.Load())
	}
}

func TestCompleteRateLimitedInBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"error":{"code":429,"message":"rate limit exceeded"}}`)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.Complete(t.Context(), "prompt", nil, "Hi")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Complete() error = %v, want ErrRateLimited for in-body 429", err)
	}
}

func TestCompleteRetriesServerError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionBody("recovered"))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	text, err := client.Complete(t.Context(), "prompt", nil, "Hi")
	if err != nil {
		t.Fatalf("Complete() error = %v, want success after one retry", err)
	}
	if text != "recovered" {
		t.Errorf("Complete() = %q, want %q", text, "recovered")
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d requests, want 2", calls.Load())
	}
}

func TestCompleteGivesUpAfterOneRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.Complete(t.Context(), "prompt", nil, "Hi")

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("Complete() error = %v, want *ProviderError", err)
	}
	if provErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", provErr.StatusCode)
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d requests, want exactly 2", calls.Load())
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.Complete(t.Context(), "prompt", nil, "Hi")
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("Complete() error = %v, want ErrEmptyCompletion", err)
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{AIBaseURL: "https://openrouter.ai/api/v1"}
	if _, err := NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatal("NewClient() accepted an empty API key")
	}
}
