package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation used in tests and in
// mock mode, where call records must not require a database file.
type MemoryStore struct {
	mu          sync.RWMutex
	credentials map[string]*Credential
	callRecords map[string]*CallRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		credentials: make(map[string]*Credential),
		callRecords: make(map[string]*CallRecord),
	}
}

// InsertCredential persists a single credential.
func (m *MemoryStore) InsertCredential(ctx context.Context, cred *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.credentials[cred.ID]; exists {
		return NewStorageError("memory", "insert_credential",
			fmt.Errorf("credential %q already exists", cred.ID))
	}

	c := *cred
	m.credentials[cred.ID] = &c
	return nil
}

// InsertCredentials persists a batch all-or-nothing.
func (m *MemoryStore) InsertCredentials(ctx context.Context, creds []*Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate the whole batch before mutating anything.
	seen := make(map[string]bool, len(creds))
	for _, cred := range creds {
		if _, exists := m.credentials[cred.ID]; exists || seen[cred.ID] {
			return NewStorageError("memory", "insert_credential_batch",
				fmt.Errorf("credential %q already exists", cred.ID))
		}
		seen[cred.ID] = true
	}

	for _, cred := range creds {
		c := *cred
		m.credentials[cred.ID] = &c
	}
	return nil
}

// GetCredential retrieves a credential by ID.
func (m *MemoryStore) GetCredential(ctx context.Context, id string) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cred, ok := m.credentials[id]
	if !ok {
		return nil, NewStorageError("memory", "get_credential", fmt.Errorf("%w: credential %q", ErrNotFound, id))
	}
	c := *cred
	return &c, nil
}

// ListCredentials returns all credentials, or only active ones, ordered by
// creation time like the SQLite backend.
func (m *MemoryStore) ListCredentials(ctx context.Context, activeOnly bool) ([]*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var creds []*Credential
	for _, cred := range m.credentials {
		if activeOnly && !cred.Active {
			continue
		}
		c := *cred
		creds = append(creds, &c)
	}

	sort.Slice(creds, func(i, j int) bool {
		return creds[i].CreatedAt.Before(creds[j].CreatedAt)
	})
	return creds, nil
}

// SetCredentialActive toggles a credential's participation in rotation.
func (m *MemoryStore) SetCredentialActive(ctx context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, ok := m.credentials[id]
	if !ok {
		return NewStorageError("memory", "set_credential_active", fmt.Errorf("%w: %q", ErrNotFound, id))
	}
	cred.Active = active
	return nil
}

// DeleteCredential removes a credential.
func (m *MemoryStore) DeleteCredential(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.credentials[id]; !ok {
		return NewStorageError("memory", "delete_credential", fmt.Errorf("%w: %q", ErrNotFound, id))
	}
	delete(m.credentials, id)
	return nil
}

// RecordCredentialUsage updates the usage counters atomically.
func (m *MemoryStore) RecordCredentialUsage(ctx context.Context, id string, success bool, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, ok := m.credentials[id]
	if !ok {
		return NewStorageError("memory", "record_credential_usage", fmt.Errorf("%w: %q", ErrNotFound, id))
	}

	cred.UsageCount++
	if success {
		cred.SuccessCount++
	} else {
		cred.FailureCount++
	}
	cred.LastUsedAt = usedAt
	return nil
}

// InsertCallRecord persists a new pending call record.
func (m *MemoryStore) InsertCallRecord(ctx context.Context, rec *CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.callRecords[rec.RequestID]; exists {
		return NewStorageError("memory", "insert_call_record",
			fmt.Errorf("call record %q already exists", rec.RequestID))
	}

	r := *rec
	m.callRecords[rec.RequestID] = &r
	return nil
}

// CompleteCallRecord updates the pending record with its terminal state.
func (m *MemoryStore) CompleteCallRecord(ctx context.Context, rec *CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.callRecords[rec.RequestID]
	if !ok {
		return NewStorageError("memory", "complete_call_record", fmt.Errorf("%w: %q", ErrNotFound, rec.RequestID))
	}

	existing.Status = rec.Status
	existing.ResponseTimeMs = rec.ResponseTimeMs
	existing.SanitizedResponse = rec.SanitizedResponse
	existing.ErrorType = rec.ErrorType
	existing.ErrorMessage = rec.ErrorMessage
	if rec.Usage != nil {
		u := *rec.Usage
		existing.Usage = &u
	}
	return nil
}

// GetCallRecord retrieves a call record by request ID.
func (m *MemoryStore) GetCallRecord(ctx context.Context, requestID string) (*CallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.callRecords[requestID]
	if !ok {
		return nil, NewStorageError("memory", "get_call_record", fmt.Errorf("%w: %q", ErrNotFound, requestID))
	}
	r := *rec
	return &r, nil
}

// ListCallRecords returns the most recent call records, newest first.
func (m *MemoryStore) ListCallRecords(ctx context.Context, limit int) ([]*CallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	records := make([]*CallRecord, 0, len(m.callRecords))
	for _, rec := range m.callRecords {
		r := *rec
		records = append(records, &r)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// CountCallRecords returns the total number of call records.
func (m *MemoryStore) CountCallRecords(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.callRecords)), nil
}

// DeleteCallRecordsBefore removes call records started before cutoff.
func (m *MemoryStore) DeleteCallRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, rec := range m.callRecords {
		if rec.Timestamp.Before(cutoff) {
			delete(m.callRecords, id)
			deleted++
		}
	}
	return deleted, nil
}

// DeleteCallRecordsExceeding removes the oldest call records beyond the
// newest max.
func (m *MemoryStore) DeleteCallRecordsExceeding(ctx context.Context, max int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	excess := int64(len(m.callRecords)) - max
	if excess <= 0 {
		return 0, nil
	}

	records := make([]*CallRecord, 0, len(m.callRecords))
	for _, rec := range m.callRecords {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	for _, rec := range records[:excess] {
		delete(m.callRecords, rec.RequestID)
	}
	return excess, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// Ensure both backends satisfy the interface.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
