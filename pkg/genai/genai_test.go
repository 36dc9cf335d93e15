package genai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExtractUsage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Usage
		ok   bool
	}{
		{
			name: "gemini spelling",
			body: `{"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":34,"totalTokenCount":46}}`,
			want: Usage{PromptTokens: 12, CompletionTokens: 34, TotalTokens: 46},
			ok:   true,
		},
		{
			name: "gemini without total",
			body: `{"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":7}}`,
			want: Usage{PromptTokens: 5, CompletionTokens: 7, TotalTokens: 12},
			ok:   true,
		},
		{
			name: "openai spelling",
			body: `{"usage":{"prompt_tokens":10,"completion_tokens":20,"total_tokens":30}}`,
			want: Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
			ok:   true,
		},
		{
			name: "legacy snake case",
			body: `{"token_usage":{"input_tokens":3,"output_tokens":4}}`,
			want: Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
			ok:   true,
		},
		{
			name: "no usage block",
			body: `{"candidates":[]}`,
			ok:   false,
		},
		{
			name: "not json",
			body: `plain text`,
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractUsage([]byte(tt.body))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("usage = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMockClientDeterministic(t *testing.T) {
	mock := NewMockClient()
	req := &GenerateRequest{Model: "gemini-2.0-flash", Prompt: "hello"}

	first, err := mock.GenerateContent(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := mock.GenerateContent(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Text != second.Text || first.Usage != second.Usage {
		t.Errorf("same request produced different responses: %+v vs %+v", first, second)
	}
	if first.Usage.TotalTokens != first.Usage.PromptTokens+first.Usage.CompletionTokens {
		t.Errorf("usage total %d does not equal parts", first.Usage.TotalTokens)
	}

	other, err := mock.GenerateContent(context.Background(), &GenerateRequest{Model: "gemini-2.0-flash", Prompt: "different"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.Text == first.Text {
		t.Error("different prompts produced identical responses")
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	return NewClient(cfg, "test-secret", slog.New(slog.DiscardHandler))
}

func TestGenerateContentSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != "test-secret" {
			t.Errorf("api key header = %q", got)
		}
		w.Write([]byte(`{
			"candidates":[{"content":{"parts":[{"text":"generated"}]}}],
			"usageMetadata":{"promptTokenCount":8,"candidatesTokenCount":16,"totalTokenCount":24}
		}`))
	})

	resp, err := client.GenerateContent(context.Background(), &GenerateRequest{
		Model:  "gemini-2.0-flash",
		Prompt: "hi",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "generated" {
		t.Errorf("text = %q, want generated", resp.Text)
	}
	if resp.Usage.TotalTokens != 24 {
		t.Errorf("total tokens = %d, want 24", resp.Usage.TotalTokens)
	}
}

func TestGenerateContentRateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"quota exhausted"}`))
	})

	_, err := client.GenerateContent(context.Background(), &GenerateRequest{Model: "m", Prompt: "p"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.HTTPStatus() != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", apiErr.HTTPStatus())
	}
	if apiErr.RetryAfterHint() != 7*time.Second {
		t.Errorf("retry-after = %v, want 7s", apiErr.RetryAfterHint())
	}
}

func TestGenerateContentAuthFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"key revoked"}`))
	})

	_, err := client.GenerateContent(context.Background(), &GenerateRequest{Model: "m", Prompt: "p"})
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error type = %T, want *AuthError", err)
	}
	if authErr.HTTPStatus() != http.StatusForbidden {
		t.Errorf("status = %d, want 403", authErr.HTTPStatus())
	}
}

func TestGenerateContentMalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	})

	_, err := client.GenerateContent(context.Background(), &GenerateRequest{Model: "m", Prompt: "p"})
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error type = %T, want *ParseError", err)
	}
}
