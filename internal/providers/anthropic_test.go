package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func anthropicSuccess(text string, inputTokens, outputTokens int) map[string]any {
	return map[string]any{
		"id":    "msg_test",
		"model": "claude-sonnet-4-20250514",
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"usage": map[string]any{
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
		},
	}
}

func TestAnthropicClassify(t *testing.T) {
	var gotReq anthropicRequest
	var gotAPIKey, gotVersion string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(anthropicSuccess(`{"document_type": "lab_result"}`, 1500, 120))
	}))
	defer server.Close()

	client := NewAnthropicClient(AnthropicConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Retry:   testRetryPolicy(),
	})

	resp, err := client.Classify(context.Background(), &ClassifyRequest{
		Instructions: "classify this",
		Pages:        [][]byte{[]byte("page-1"), []byte("page-2")},
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if gotAPIKey != "test-key" {
		t.Errorf("x-api-key = %q", gotAPIKey)
	}
	if gotVersion != AnthropicAPIVersion {
		t.Errorf("anthropic-version = %q", gotVersion)
	}
	if gotReq.Model != AnthropicDefaultModel {
		t.Errorf("model = %q, want default", gotReq.Model)
	}
	if gotReq.MaxTokens != 1024 {
		t.Errorf("max_tokens = %d, want 1024", gotReq.MaxTokens)
	}
	if len(gotReq.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(gotReq.Messages))
	}
	// One text block followed by one image block per page.
	content := gotReq.Messages[0].Content
	if len(content) != 3 {
		t.Fatalf("content blocks = %d, want 3", len(content))
	}
	if content[0].Type != "text" || content[0].Text != "classify this" {
		t.Errorf("first block = %+v, want instructions text", content[0])
	}
	for i := 1; i < 3; i++ {
		if content[i].Type != "image" || content[i].Source == nil || content[i].Source.MediaType != "image/png" {
			t.Errorf("block %d = %+v, want base64 png image", i, content[i])
		}
	}

	if resp.Text != `{"document_type": "lab_result"}` {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.InputTokens != 1500 || resp.OutputTokens != 120 {
		t.Errorf("tokens = %d/%d, want 1500/120", resp.InputTokens, resp.OutputTokens)
	}
	if resp.Provider != AnthropicName || resp.Attempts != 1 {
		t.Errorf("provider/attempts = %q/%d", resp.Provider, resp.Attempts)
	}
}

func TestAnthropicRetriesTransient(t *testing.T) {
	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Fail MaxAttempts-1 times, then succeed.
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(anthropicSuccess("ok", 10, 5))
	}))
	defer server.Close()

	client := NewAnthropicClient(AnthropicConfig{
		APIKey:  "k",
		BaseURL: server.URL,
		Retry:   testRetryPolicy(),
	})

	resp, err := client.Classify(context.Background(), &ClassifyRequest{Instructions: "x"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("server calls = %d, want 3", calls.Load())
	}
	if resp.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", resp.Attempts)
	}
}

func TestAnthropicExhaustsRetries(t *testing.T) {
	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewAnthropicClient(AnthropicConfig{
		APIKey:  "k",
		BaseURL: server.URL,
		Retry:   testRetryPolicy(),
	})

	_, err := client.Classify(context.Background(), &ClassifyRequest{Instructions: "x"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls.Load() != 3 {
		t.Errorf("server calls = %d, want 3", calls.Load())
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T, want *APIError", err)
	}
	if !apiErr.Transient || apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if !IsTransient(err) {
		t.Error("exhausted transient error should still classify as transient")
	}
}

func TestAnthropicFatalNotRetried(t *testing.T) {
	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"type": "authentication_error", "message": "invalid api key"},
		})
	}))
	defer server.Close()

	client := NewAnthropicClient(AnthropicConfig{
		APIKey:  "bad",
		BaseURL: server.URL,
		Retry:   testRetryPolicy(),
	})

	_, err := client.Classify(context.Background(), &ClassifyRequest{Instructions: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("server calls = %d, fatal errors must not be retried", calls.Load())
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T, want *APIError", err)
	}
	if apiErr.Transient {
		t.Error("401 classified as transient")
	}
	if apiErr.Message != "invalid api key" {
		t.Errorf("message = %q, want parsed API message", apiErr.Message)
	}
	if IsTransient(err) {
		t.Error("fatal error classified as transient")
	}
}

func TestAnthropicOverloadedIsTransient(t *testing.T) {
	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(529)
			return
		}
		json.NewEncoder(w).Encode(anthropicSuccess("ok", 1, 1))
	}))
	defer server.Close()

	client := NewAnthropicClient(AnthropicConfig{
		APIKey:  "k",
		BaseURL: server.URL,
		Retry:   testRetryPolicy(),
	})

	resp, err := client.Classify(context.Background(), &ClassifyRequest{Instructions: "x"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if resp.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", resp.Attempts)
	}
}

func TestAnthropicContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewAnthropicClient(AnthropicConfig{
		APIKey:  "k",
		BaseURL: server.URL,
		Retry:   RetryPolicy{MaxAttempts: 5, Delay: time.Second, MaxDelay: 2 * time.Second},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Classify(ctx, &ClassifyRequest{Instructions: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsTransient(err) && errors.Is(err, context.DeadlineExceeded) {
		t.Error("cancellation must not classify as transient")
	}
}
