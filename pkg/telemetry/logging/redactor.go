package logging

import (
	"log/slog"
	"regexp"
	"strings"

	"halcyon-hq/callisto/pkg/vault"
)

// RedactPattern is a user-supplied redaction rule.
type RedactPattern struct {
	// Name identifies the pattern
	Name string `yaml:"name"`

	// Pattern is the regular expression to match
	Pattern string `yaml:"pattern"`

	// Replacement is the substitution text
	Replacement string `yaml:"replacement"`
}

// Redactor masks secrets in log output: API-key-shaped substrings inside
// string values, and the values of sensitively named fields.
type Redactor struct {
	patterns []*compiledPattern
}

type compiledPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternBearerToken = "bearer_token"
	PatternPassword    = "password"
)

// NewRedactor creates a Redactor with built-in and custom patterns.
func NewRedactor(custom []RedactPattern) *Redactor {
	r := &Redactor{}
	r.addDefaultPatterns()
	for _, p := range custom {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, &compiledPattern{
			name:        p.Name,
			regex:       regex,
			replacement: p.Replacement,
		})
	}
	return r
}

func (r *Redactor) addDefaultPatterns() {
	defaults := []struct {
		name        string
		regex       string
		replacement string
	}{
		{PatternAPIKey, `AIza[a-zA-Z0-9_\-]+`, "AIza***"},
		{PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},
		{PatternPassword, `(password|passwd|pwd)[:=]\s*\S+`, "$1: ***"},
	}
	for _, p := range defaults {
		r.patterns = append(r.patterns, &compiledPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}
}

// RedactString masks secret-shaped substrings in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	redacted := value
	for _, pattern := range r.patterns {
		redacted = pattern.regex.ReplaceAllString(redacted, pattern.replacement)
	}
	return redacted
}

// RedactAttr masks a single log attribute. Sensitively named keys have
// their whole value masked; other string values are pattern-scanned.
func (r *Redactor) RedactAttr(attr slog.Attr) slog.Attr {
	if isSensitiveKey(attr.Key) {
		return slog.String(attr.Key, vault.Mask(attr.Value.String()))
	}
	if attr.Value.Kind() == slog.KindGroup {
		members := attr.Value.Group()
		redacted := make([]any, 0, len(members))
		for _, member := range members {
			redacted = append(redacted, r.RedactAttr(member))
		}
		return slog.Group(attr.Key, redacted...)
	}
	if attr.Value.Kind() == slog.KindString {
		return slog.String(attr.Key, r.RedactString(attr.Value.String()))
	}
	return attr
}

// isSensitiveKey checks if a key name indicates secret material.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	sensitive := []string{
		"password", "passwd", "pwd",
		"secret", "token", "api_key", "apikey",
		"auth", "authorization",
		"credential", "private_key", "privatekey",
	}
	for _, s := range sensitive {
		if strings.Contains(lowerKey, s) {
			return true
		}
	}
	return false
}
