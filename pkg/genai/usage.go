package genai

import "encoding/json"

// Usage is the canonical token accounting for one call. Every upstream
// response shape is mapped onto it by exactly one adapter below.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// usageAdapter maps one known upstream response spelling onto Usage.
// Adapters are tried in order; the first whose fields are present wins.
type usageAdapter func(raw map[string]json.RawMessage) (Usage, bool)

var usageAdapters = []usageAdapter{
	geminiUsage,
	openAIUsage,
	snakeCaseUsage,
}

// ExtractUsage maps the raw response body onto the canonical Usage struct.
// It returns false when the body carries no recognizable usage block.
func ExtractUsage(body []byte) (Usage, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Usage{}, false
	}
	for _, adapt := range usageAdapters {
		if u, ok := adapt(raw); ok {
			return normalize(u), true
		}
	}
	return Usage{}, false
}

// geminiUsage handles the Gemini API spelling:
// {"usageMetadata": {"promptTokenCount": n, "candidatesTokenCount": n, "totalTokenCount": n}}
func geminiUsage(raw map[string]json.RawMessage) (Usage, bool) {
	blob, ok := raw["usageMetadata"]
	if !ok {
		return Usage{}, false
	}
	var meta struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	}
	if err := json.Unmarshal(blob, &meta); err != nil {
		return Usage{}, false
	}
	return Usage{
		PromptTokens:     meta.PromptTokenCount,
		CompletionTokens: meta.CandidatesTokenCount,
		TotalTokens:      meta.TotalTokenCount,
	}, true
}

// openAIUsage handles the OpenAI-style spelling:
// {"usage": {"prompt_tokens": n, "completion_tokens": n, "total_tokens": n}}
func openAIUsage(raw map[string]json.RawMessage) (Usage, bool) {
	blob, ok := raw["usage"]
	if !ok {
		return Usage{}, false
	}
	var u Usage
	if err := json.Unmarshal(blob, &u); err != nil {
		return Usage{}, false
	}
	return u, true
}

// snakeCaseUsage handles the legacy spelling:
// {"token_usage": {"input_tokens": n, "output_tokens": n}}
func snakeCaseUsage(raw map[string]json.RawMessage) (Usage, bool) {
	blob, ok := raw["token_usage"]
	if !ok {
		return Usage{}, false
	}
	var u struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	}
	if err := json.Unmarshal(blob, &u); err != nil {
		return Usage{}, false
	}
	return Usage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.InputTokens + u.OutputTokens,
	}, true
}

// normalize fills a missing total from the parts.
func normalize(u Usage) Usage {
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}
