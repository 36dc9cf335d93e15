package interceptor

import (
	"encoding/json"
	"fmt"
	"strings"

	"halcyon-hq/callisto/pkg/vault"
)

// Default sanitization thresholds.
const (
	// DefaultSummaryThreshold is the serialized size in characters above
	// which a payload is replaced with a summary.
	DefaultSummaryThreshold = 1000

	// DefaultPreviewLength is how much of an oversized payload the
	// summary preserves.
	DefaultPreviewLength = 200
)

// SanitizerConfig tunes the sanitizer.
type SanitizerConfig struct {
	// SummaryThreshold replaces payloads whose JSON form exceeds this
	// many characters. Zero selects DefaultSummaryThreshold.
	SummaryThreshold int

	// PreviewLength is the preview size kept in summaries. Zero selects
	// DefaultPreviewLength.
	PreviewLength int
}

// Sanitizer prepares payloads for persistence: secret-named fields are
// masked and oversized payloads summarized. Sanitize never fails; inputs
// that cannot be represented as JSON pass through as their string form.
type Sanitizer struct {
	summaryThreshold int
	previewLength    int
}

// NewSanitizer creates a sanitizer.
func NewSanitizer(cfg SanitizerConfig) *Sanitizer {
	if cfg.SummaryThreshold <= 0 {
		cfg.SummaryThreshold = DefaultSummaryThreshold
	}
	if cfg.PreviewLength <= 0 {
		cfg.PreviewLength = DefaultPreviewLength
	}
	return &Sanitizer{
		summaryThreshold: cfg.SummaryThreshold,
		previewLength:    cfg.PreviewLength,
	}
}

// Sanitize returns the persistable JSON form of value: secrets masked,
// oversized payloads summarized.
func (s *Sanitizer) Sanitize(value any) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return s.clip(fmt.Sprintf("%v", value))
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return s.clip(string(raw))
	}
	masked := maskSecrets(decoded)

	out, err := json.Marshal(masked)
	if err != nil {
		return s.clip(string(raw))
	}
	if len(out) > s.summaryThreshold {
		return s.summarize(out, decoded)
	}
	return string(out)
}

// summarize reduces an oversized payload to its shape and a preview.
func (s *Sanitizer) summarize(serialized []byte, decoded any) string {
	summary := map[string]any{
		"_summary": true,
		"type":     jsonTypeName(decoded),
		"length":   len(serialized),
		"preview":  string(serialized[:s.previewLength]),
	}
	out, err := json.Marshal(summary)
	if err != nil {
		return string(serialized[:s.previewLength])
	}
	return string(out)
}

// jsonTypeName names the JSON shape of a decoded value.
func jsonTypeName(decoded any) string {
	switch decoded.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return "unknown"
	}
}

// clip bounds non-JSON fallback text by the same threshold.
func (s *Sanitizer) clip(text string) string {
	if len(text) > s.summaryThreshold {
		return text[:s.previewLength]
	}
	return text
}

// maskSecrets walks a decoded JSON value and masks the values of
// secret-named keys and API-key-shaped strings.
func maskSecrets(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, member := range v {
			if isSecretKey(key) {
				if str, ok := member.(string); ok {
					out[key] = vault.Mask(str)
					continue
				}
				out[key] = vault.RedactionMarker
				continue
			}
			out[key] = maskSecrets(member)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, member := range v {
			out[i] = maskSecrets(member)
		}
		return out
	case string:
		if looksLikeAPIKey(v) {
			return vault.Mask(v)
		}
		return v
	default:
		return v
	}
}

func isSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range []string{"api_key", "apikey", "secret", "password", "credential", "authorization", "access_token", "bearer"} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func looksLikeAPIKey(value string) bool {
	return strings.HasPrefix(value, "AIza") && len(value) >= 30
}
