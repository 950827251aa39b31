package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aschepis/backscratcher/scribe/llm"
	"github.com/rs/zerolog"
)

func testRequest() *llm.Request {
	return &llm.Request{
		Messages: []llm.Message{
			llm.NewTextMessage(llm.RoleUser, "hello"),
		},
	}
}

func newTestTransport(t *testing.T, provider, baseURL string) *Transport {
	t.Helper()
	tr, err := New(llm.ClientKey{
		Provider: provider,
		Model:    "test-model",
		BaseURL:  baseURL,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return tr
}

func TestStream_SSELines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"He\"}}]}\n\n"))
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"llo\"}}]}\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	tr := newTestTransport(t, llm.ProviderLMStudio, server.URL)
	stream, err := tr.Stream(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer stream.Close()

	var lines []string
	for stream.Next() {
		lines = append(lines, stream.Line())
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %v", len(lines), lines)
	}
	if lines[2] != "data: [DONE]" {
		t.Errorf("expected terminal sentinel line, got %q", lines[2])
	}
}

func TestStream_NDJSONLines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"message":{"role":"assistant","content":"Hi"},"done":false}` + "\n"))
		w.Write([]byte(`{"message":{"role":"assistant","content":""},"done":true}` + "\n"))
	}))
	defer server.Close()

	tr := newTestTransport(t, llm.ProviderOllama, server.URL)
	stream, err := tr.Stream(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer stream.Close()

	var count int
	for stream.Next() {
		count++
	}
	if count != 2 {
		t.Errorf("expected 2 lines, got %d", count)
	}
}

func TestStream_RateLimitError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer server.Close()

	tr := newTestTransport(t, llm.ProviderLMStudio, server.URL)
	_, err := tr.Stream(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !llm.IsRateLimitError(err) {
		t.Errorf("expected rate limit classification, got %v", err)
	}
	retryAfter := llm.ExtractRetryAfter(err)
	if retryAfter == nil || *retryAfter != 30*time.Second {
		t.Errorf("expected 30s retry-after, got %v", retryAfter)
	}
}

func TestStream_ServerErrorIsRetryableTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	tr := newTestTransport(t, llm.ProviderLMStudio, server.URL)
	_, err := tr.Stream(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !llm.IsTransportError(err) {
		t.Errorf("expected transport classification, got %v", err)
	}
	if !llm.IsRetryableError(err) {
		t.Error("5xx should be retryable")
	}

	var llmErr *llm.Error
	if !errors.As(err, &llmErr) {
		t.Fatalf("expected *llm.Error, got %T", err)
	}
	if llmErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", llmErr.StatusCode)
	}
	if llmErr.Body != "upstream unavailable" {
		t.Errorf("expected body retained, got %q", llmErr.Body)
	}
}

func TestStream_ClientErrorNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad request"))
	}))
	defer server.Close()

	tr := newTestTransport(t, llm.ProviderLMStudio, server.URL)
	_, err := tr.Stream(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected an error")
	}
	if llm.IsRetryableError(err) {
		t.Error("4xx should not be retryable")
	}
}

func TestSynchronous_DrainsStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n"))
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\" world\"},\"finish_reason\":\"stop\"}]}\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	tr := newTestTransport(t, llm.ProviderLMStudio, server.URL)
	turn, err := tr.Synchronous(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Synchronous failed: %v", err)
	}
	if turn.Text != "Hello world" {
		t.Errorf("expected %q, got %q", "Hello world", turn.Text)
	}
	if turn.StopReason != "stop" {
		t.Errorf("expected stop reason, got %q", turn.StopReason)
	}
	if turn.HasToolCalls() {
		t.Error("expected no tool calls")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d := parseRetryAfter(""); d != nil {
		t.Errorf("empty header should yield nil, got %v", d)
	}
	if d := parseRetryAfter("not-a-number"); d != nil {
		t.Errorf("non-numeric header should yield nil, got %v", d)
	}
	if d := parseRetryAfter("15"); d == nil || *d != 15*time.Second {
		t.Errorf("expected 15s, got %v", d)
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(llm.ClientKey{Provider: "smoke-signals", Model: "m"}, zerolog.Nop())
	if err == nil {
		t.Fatal("expected an error for unknown provider")
	}
}
