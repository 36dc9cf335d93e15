package storage

import "time"

// CallStatus is the lifecycle state of a call record.
type CallStatus string

const (
	// StatusPending marks a record persisted before the call was invoked.
	StatusPending CallStatus = "pending"
	// StatusSuccess marks a record whose call completed successfully.
	StatusSuccess CallStatus = "success"
	// StatusError marks a record whose call failed.
	StatusError CallStatus = "error"
)

// Credential is one entry of the key rotation pool.
//
// Invariant: UsageCount == SuccessCount + FailureCount at all times.
type Credential struct {
	// ID is the unique credential identifier (UUID).
	ID string

	// Name is the admin-assigned display name.
	Name string

	// SecretCiphertext is the AEAD-sealed API key. The plaintext never
	// touches storage.
	SecretCiphertext string

	// Active controls whether the credential participates in rotation.
	Active bool

	// Priority orders credentials for priority selection (lower = preferred).
	Priority int

	// UsageCount is the total number of recorded uses.
	UsageCount int64

	// SuccessCount is the number of recorded successful uses.
	SuccessCount int64

	// FailureCount is the number of recorded failed uses.
	FailureCount int64

	// LastUsedAt is the time of the most recent recorded use.
	// Zero when the credential has never been used.
	LastUsedAt time.Time

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time
}

// TokenUsage is the canonical token accounting for one call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CallRecord is the audit record for one intercepted API call.
// Exactly one record exists per RequestID: it is inserted with
// StatusPending before the call and completed exactly once afterwards.
type CallRecord struct {
	// RequestID is the unique call identifier (UUID).
	RequestID string

	// Timestamp is when the call started.
	Timestamp time.Time

	// Service and Method identify the instrumented call site.
	Service string
	Method  string

	// Model is the upstream model identifier, when known.
	Model string

	// SanitizedParams is the redacted/summarized JSON of the call parameters.
	SanitizedParams string

	// Status is pending until the call finishes.
	Status CallStatus

	// ResponseTimeMs is the wall-clock call duration in milliseconds.
	ResponseTimeMs int64

	// Usage is the extracted token usage, when the response carried any.
	Usage *TokenUsage

	// SanitizedResponse is the redacted/summarized JSON of the response.
	SanitizedResponse string

	// ErrorType and ErrorMessage are set only for StatusError records.
	ErrorType    string
	ErrorMessage string
}
