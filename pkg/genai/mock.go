package genai

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// MockClient short-circuits network calls with deterministic canned
// responses: the same logical request always yields the same response.
type MockClient struct{}

// NewMockClient creates a mock generator.
func NewMockClient() *MockClient {
	return &MockClient{}
}

var _ Generator = (*MockClient)(nil)

// GenerateContent returns a canned response derived from a hash of the
// request, so repeated calls with equal inputs are byte-identical.
func (m *MockClient) GenerateContent(_ context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	seed := requestSeed(req)
	text := fmt.Sprintf("mock response %08x for model %s", seed, req.Model)
	usage := Usage{
		PromptTokens:     int(seed%400) + 10,
		CompletionTokens: int(seed%900) + 25,
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	raw, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
		"usageMetadata": map[string]any{
			"promptTokenCount":     usage.PromptTokens,
			"candidatesTokenCount": usage.CompletionTokens,
			"totalTokenCount":      usage.TotalTokens,
		},
	})

	return &GenerateResponse{
		Model: req.Model,
		Text:  text,
		Usage: usage,
		Raw:   raw,
	}, nil
}

// requestSeed hashes the logical request content into a stable seed.
func requestSeed(req *GenerateRequest) uint32 {
	payload, _ := json.Marshal(req)
	sum := sha256.Sum256(payload)
	return binary.BigEndian.Uint32(sum[:4])
}
