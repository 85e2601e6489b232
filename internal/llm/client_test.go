package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(url string) *Client {
	return NewClient(Config{
		APIBase:        url,
		APIKey:         "test-key",
		Model:          "test-model",
		EmbeddingModel: "test-embed",
		Timeout:        10 * time.Second,
		Logger:         testLogger(),
	})
}

func TestChatSendsPayloadAndReturnsFirstChoice(t *testing.T) {
	var got chatPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		io.WriteString(w, `{"choices":[{"message":{"content":"42 pencils"}},{"message":{"content":"ignored"}}]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	out, err := c.Chat(context.Background(), ChatRequest{
		Messages:    []Message{{Role: "system", Content: "be brief"}, {Role: "user", Content: "pencils?"}},
		Temperature: 0.7,
		MaxTokens:   150,
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if out != "42 pencils" {
		t.Fatalf("out = %q", out)
	}
	if got.Model != "test-model" || got.MaxTokens != 150 || got.Temperature != 0.7 {
		t.Fatalf("payload = %+v", got)
	}
	if got.Stream {
		t.Fatal("streaming requested")
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v", got.Messages)
	}
}

func TestChatDefaultsMaxTokens(t *testing.T) {
	var got chatPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got.MaxTokens != 512 {
		t.Fatalf("MaxTokens = %d, want default 512", got.MaxTokens)
	}
}

func TestChatEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil || !strings.Contains(err.Error(), "no choices") {
		t.Fatalf("err = %v", err)
	}
}

func TestChatErrorStatusIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestRetryRecoversFromServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"choices":[{"message":{"content":"recovered"}}]}`)
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if out != "recovered" {
		t.Fatalf("out = %q", out)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("server hit %d times, want 2", n)
	}
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "still down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if n := calls.Load(); n != int32(maxRetries+1) {
		t.Fatalf("server hit %d times, want %d", n, maxRetries+1)
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(srv.URL).Chat(ctx, ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error with cancelled context")
	}
}

func TestEmbedReturnsVector(t *testing.T) {
	var got embeddingPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{"data":[{"embedding":[0.25,-0.5,1.0]}]}`)
	}))
	defer srv.Close()

	vec, err := newTestClient(srv.URL).Embed(context.Background(), "photosynthesis")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	want := []float32{0.25, -0.5, 1.0}
	if len(vec) != len(want) {
		t.Fatalf("vec = %v", vec)
	}
	for i := range want {
		if vec[i] != want[i] {
			t.Fatalf("vec[%d] = %v, want %v", i, vec[i], want[i])
		}
	}
	if got.Model != "test-embed" || len(got.Input) != 1 || got.Input[0] != "photosynthesis" {
		t.Fatalf("payload = %+v", got)
	}
}

func TestEmbedEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Embed(context.Background(), "text")
	if err == nil || !strings.Contains(err.Error(), "no vector") {
		t.Fatalf("err = %v", err)
	}
}

func TestOrFallbackUsesCallResult(t *testing.T) {
	out := OrFallback(context.Background(), testLogger(), "test",
		func(context.Context) (string, error) { return "live", nil },
		func() string { return "canned" })
	if out != "live" {
		t.Fatalf("out = %q", out)
	}
}

func TestOrFallbackDegradesOnError(t *testing.T) {
	out := OrFallback(context.Background(), testLogger(), "test",
		func(context.Context) (string, error) { return "", errors.New("backend down") },
		func() string { return "canned" })
	if out != "canned" {
		t.Fatalf("out = %q", out)
	}
}
