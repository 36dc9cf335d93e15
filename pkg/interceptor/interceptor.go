package interceptor

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"halcyon-hq/callisto/pkg/genai"
	"halcyon-hq/callisto/pkg/retry"
	"halcyon-hq/callisto/pkg/storage"
	"halcyon-hq/callisto/pkg/telemetry/metrics"
)

// MetricsSink receives one observation per completed call. *metrics.Monitor
// satisfies it.
type MetricsSink interface {
	LogAPICall(point metrics.DataPoint)
}

// usageCarrier is satisfied by responses that expose token accounting.
type usageCarrier interface {
	TokenUsage() genai.Usage
}

// Interceptor holds the shared instrumentation dependencies.
type Interceptor struct {
	store     storage.Store
	sink      MetricsSink
	sanitizer *Sanitizer
	logger    *slog.Logger
}

// New creates an interceptor. sink may be nil to disable metrics.
func New(store storage.Store, sink MetricsSink, sanitizer *Sanitizer, logger *slog.Logger) *Interceptor {
	if sanitizer == nil {
		sanitizer = NewSanitizer(SanitizerConfig{})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Interceptor{
		store:     store,
		sink:      sink,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// Wrap decorates fn with instrumentation for the named service method.
// The returned function has the same signature and error behavior as fn;
// instrumentation failures are logged, never surfaced.
func Wrap[Req, Resp any](ic *Interceptor, service, method string, fn func(context.Context, Req) (Resp, error)) func(context.Context, Req) (Resp, error) {
	return func(ctx context.Context, req Req) (Resp, error) {
		requestID := uuid.NewString()
		start := time.Now()

		record := &storage.CallRecord{
			RequestID:       requestID,
			Timestamp:       start,
			Service:         service,
			Method:          method,
			Model:           modelOf(req),
			SanitizedParams: ic.sanitizer.Sanitize(req),
			Status:          storage.StatusPending,
		}
		if err := ic.store.InsertCallRecord(ctx, record); err != nil {
			ic.logger.Error("failed to persist pending call record",
				"request_id", requestID,
				"service", service,
				"method", method,
				"error", err,
			)
		}

		resp, err := fn(ctx, req)
		elapsed := time.Since(start)

		if err != nil {
			ic.complete(ctx, requestID, &storage.CallRecord{
				RequestID:      requestID,
				Status:         storage.StatusError,
				ResponseTimeMs: elapsed.Milliseconds(),
				ErrorType:      errorType(err),
				ErrorMessage:   err.Error(),
			})
			ic.observe(service, method, elapsed, false, 0, errorType(err))
			return resp, err
		}

		usage := extractUsage(resp)
		ic.complete(ctx, requestID, &storage.CallRecord{
			RequestID:         requestID,
			Status:            storage.StatusSuccess,
			ResponseTimeMs:    elapsed.Milliseconds(),
			Usage:             usage,
			SanitizedResponse: ic.sanitizer.Sanitize(resp),
		})
		tokens := 0
		if usage != nil {
			tokens = usage.TotalTokens
		}
		ic.observe(service, method, elapsed, true, tokens, "")
		return resp, nil
	}
}

// complete updates the pending record exactly once.
func (ic *Interceptor) complete(ctx context.Context, requestID string, update *storage.CallRecord) {
	if err := ic.store.CompleteCallRecord(ctx, update); err != nil {
		ic.logger.Error("failed to complete call record",
			"request_id", requestID,
			"error", err,
		)
	}
}

func (ic *Interceptor) observe(service, method string, elapsed time.Duration, success bool, tokens int, errType string) {
	if ic.sink == nil {
		return
	}
	ic.sink.LogAPICall(metrics.DataPoint{
		Service:      service,
		Method:       method,
		ResponseTime: elapsed,
		Success:      success,
		Tokens:       tokens,
		ErrorType:    errType,
	})
}

// extractUsage probes the response for token usage via the typed carrier.
func extractUsage(resp any) *storage.TokenUsage {
	carrier, ok := resp.(usageCarrier)
	if !ok {
		return nil
	}
	u := carrier.TokenUsage()
	if u == (genai.Usage{}) {
		return nil
	}
	return &storage.TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

// errorType names err for the call record: the retry engine's
// classification code when available, the Go type otherwise.
func errorType(err error) string {
	return retry.Standardize(err).Code
}

// modelOf pulls a top-level "model" field from the request's JSON form.
func modelOf(req any) string {
	raw, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	var probe struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.Model
}
