package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the production endpoint of the generative AI service.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// ServiceName identifies this upstream in call records and errors.
const ServiceName = "genai"

// Config holds the HTTP client configuration.
type Config struct {
	// BaseURL is the API endpoint root. Empty selects DefaultBaseURL.
	BaseURL string

	// Timeout bounds each HTTP request end to end.
	Timeout time.Duration

	// MaxIdleConns is the connection pool size.
	MaxIdleConns int

	// MaxIdleConnsPerHost is the per-host connection pool size.
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept.
	IdleConnTimeout time.Duration
}

// DefaultConfig returns the standard client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:             DefaultBaseURL,
		Timeout:             60 * time.Second,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}
}

// GenerateRequest is one content generation call.
type GenerateRequest struct {
	// Model is the model identifier, e.g. "gemini-2.0-flash".
	Model string `json:"model"`

	// Prompt is the user text sent to the model.
	Prompt string `json:"prompt"`

	// Options are pass-through generation parameters (temperature,
	// max output tokens, ...).
	Options map[string]any `json:"options,omitempty"`
}

// GenerateResponse is the canonical result of a generation call.
type GenerateResponse struct {
	// Model echoes the requested model.
	Model string `json:"model"`

	// Text is the generated content.
	Text string `json:"text"`

	// Usage is the canonical token accounting, zero when the upstream
	// response carried none.
	Usage Usage `json:"usage"`

	// Raw is the upstream response body.
	Raw json.RawMessage `json:"-"`
}

// TokenUsage returns the canonical token accounting. It satisfies the
// instrumentation layer's usage probe.
func (r *GenerateResponse) TokenUsage() Usage {
	return r.Usage
}

// Generator is the surface the interceptor and callers program against.
// Client implements it for live traffic, MockClient for mock mode.
type Generator interface {
	GenerateContent(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}

// Client is the live HTTP handle to the remote service. Construct it via
// the lifecycle manager rather than directly, so mock mode and secret
// resolution apply.
type Client struct {
	config Config
	secret string
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a connection-pooled client authenticated with secret.
func NewClient(config Config, secret string, logger *slog.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}
	return &Client{
		config: config,
		secret: secret,
		http: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		logger: logger,
	}
}

// wire types for the upstream generateContent call.
type generatePayload struct {
	Contents         []wireContent  `json:"contents"`
	GenerationConfig map[string]any `json:"generationConfig,omitempty"`
}

type wireContent struct {
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text string `json:"text"`
}

type generateReply struct {
	Candidates []struct {
		Content wireContent `json:"content"`
	} `json:"candidates"`
}

// GenerateContent performs one generation call. It makes a single attempt;
// retries belong to the retry engine wrapping it.
func (c *Client) GenerateContent(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.config.BaseURL, url.PathEscape(req.Model))

	payload := generatePayload{
		Contents:         []wireContent{{Parts: []wirePart{{Text: req.Prompt}}}},
		GenerationConfig: req.Options,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.secret)

	c.logger.Debug("sending generation request", "model", req.Model, "endpoint", endpoint)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ParseError{Service: ServiceName, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.responseError(resp, respBody)
	}

	var reply generateReply
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return nil, &ParseError{Service: ServiceName, RawResponse: string(respBody), Cause: err}
	}

	out := &GenerateResponse{Model: req.Model, Raw: respBody}
	if len(reply.Candidates) > 0 && len(reply.Candidates[0].Content.Parts) > 0 {
		out.Text = reply.Candidates[0].Content.Parts[0].Text
	}
	if usage, ok := ExtractUsage(respBody); ok {
		out.Usage = usage
	}
	return out, nil
}

// responseError maps a non-2xx response to the typed error taxonomy.
func (c *Client) responseError(resp *http.Response, body []byte) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{
			Service:    ServiceName,
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	default:
		return &APIError{
			Service:    ServiceName,
			StatusCode: resp.StatusCode,
			Message:    string(body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// parseRetryAfter parses a Retry-After header in either delay-seconds or
// HTTP-date form.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 0
}
