package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("storage: not found")

// StorageError wraps a backend failure with the backend name and the
// operation that failed.
type StorageError struct {
	// Backend is the storage backend name ("sqlite", "memory").
	Backend string

	// Op is the operation that failed.
	Op string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %s: %v", e.Backend, e.Op, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a StorageError.
func NewStorageError(backend, op string, cause error) *StorageError {
	return &StorageError{Backend: backend, Op: op, Cause: cause}
}

// Store persists credentials and call records.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// InsertCredential persists a single credential.
	InsertCredential(ctx context.Context, cred *Credential) error

	// InsertCredentials persists a batch of credentials atomically.
	// Either every credential is persisted or none is.
	InsertCredentials(ctx context.Context, creds []*Credential) error

	// GetCredential retrieves a credential by ID.
	// Returns ErrNotFound (wrapped) when absent.
	GetCredential(ctx context.Context, id string) (*Credential, error)

	// ListCredentials returns all credentials, or only active ones.
	ListCredentials(ctx context.Context, activeOnly bool) ([]*Credential, error)

	// SetCredentialActive toggles a credential's participation in rotation.
	SetCredentialActive(ctx context.Context, id string, active bool) error

	// DeleteCredential removes a credential.
	DeleteCredential(ctx context.Context, id string) error

	// RecordCredentialUsage increments the usage counter and exactly one of
	// the success/failure counters, and stamps the last-used time, in a
	// single statement.
	RecordCredentialUsage(ctx context.Context, id string, success bool, usedAt time.Time) error

	// InsertCallRecord persists a new pending call record.
	InsertCallRecord(ctx context.Context, rec *CallRecord) error

	// CompleteCallRecord updates the record identified by rec.RequestID with
	// its terminal status and result fields, in a single statement.
	CompleteCallRecord(ctx context.Context, rec *CallRecord) error

	// GetCallRecord retrieves a call record by request ID.
	// Returns ErrNotFound (wrapped) when absent.
	GetCallRecord(ctx context.Context, requestID string) (*CallRecord, error)

	// ListCallRecords returns the most recent call records, newest first.
	ListCallRecords(ctx context.Context, limit int) ([]*CallRecord, error)

	// CountCallRecords returns the total number of call records.
	CountCallRecords(ctx context.Context) (int64, error)

	// DeleteCallRecordsBefore removes call records started before cutoff and
	// returns the number deleted.
	DeleteCallRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteCallRecordsExceeding removes the oldest call records so that at
	// most max remain, returning the number deleted.
	DeleteCallRecordsExceeding(ctx context.Context, max int64) (int64, error)

	// Close releases backend resources.
	Close() error
}
