package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// backends returns one factory per Store implementation so every test runs
// against both.
func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			cfg := DefaultSQLiteConfig()
			cfg.Path = filepath.Join(t.TempDir(), "test.db")
			store, err := NewSQLiteStore(cfg)
			if err != nil {
				t.Fatalf("NewSQLiteStore() error = %v", err)
			}
			t.Cleanup(func() { store.Close() })
			return store
		},
	}
}

func testCredential(id string, priority int) *Credential {
	return &Credential{
		ID:               id,
		Name:             "key-" + id,
		SecretCiphertext: "ciphertext-" + id,
		Active:           true,
		Priority:         priority,
		CreatedAt:        time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestStore_CredentialRoundTrip(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			cred := testCredential("c1", 10)
			if err := store.InsertCredential(ctx, cred); err != nil {
				t.Fatalf("InsertCredential() error = %v", err)
			}

			got, err := store.GetCredential(ctx, "c1")
			if err != nil {
				t.Fatalf("GetCredential() error = %v", err)
			}
			if got.Name != cred.Name || got.SecretCiphertext != cred.SecretCiphertext {
				t.Errorf("GetCredential() = %+v, want %+v", got, cred)
			}
			if got.Priority != 10 || !got.Active {
				t.Errorf("GetCredential() priority/active = %d/%v, want 10/true", got.Priority, got.Active)
			}
			if !got.LastUsedAt.IsZero() {
				t.Errorf("new credential LastUsedAt = %v, want zero", got.LastUsedAt)
			}
		})
	}
}

func TestStore_GetCredentialNotFound(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)

			_, err := store.GetCredential(context.Background(), "missing")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("GetCredential(missing) error = %v, want ErrNotFound", err)
			}

			var storageErr *StorageError
			if !errors.As(err, &storageErr) {
				t.Errorf("GetCredential(missing) error = %T, want *StorageError", err)
			}
		})
	}
}

func TestStore_InsertCredentialsAllOrNothing(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			if err := store.InsertCredential(ctx, testCredential("dup", 1)); err != nil {
				t.Fatalf("InsertCredential() error = %v", err)
			}

			// Batch contains a duplicate ID; nothing from it may persist.
			batch := []*Credential{
				testCredential("fresh-1", 1),
				testCredential("dup", 2),
				testCredential("fresh-2", 3),
			}
			if err := store.InsertCredentials(ctx, batch); err == nil {
				t.Fatal("InsertCredentials() with duplicate succeeded, want error")
			}

			creds, err := store.ListCredentials(ctx, false)
			if err != nil {
				t.Fatalf("ListCredentials() error = %v", err)
			}
			if len(creds) != 1 {
				t.Errorf("after failed batch, %d credentials persisted, want 1", len(creds))
			}
		})
	}
}

func TestStore_RecordCredentialUsage(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			if err := store.InsertCredential(ctx, testCredential("c1", 1)); err != nil {
				t.Fatalf("InsertCredential() error = %v", err)
			}

			now := time.Now().UTC().Truncate(time.Millisecond)
			usages := []bool{true, true, false, true, false}
			for _, success := range usages {
				if err := store.RecordCredentialUsage(ctx, "c1", success, now); err != nil {
					t.Fatalf("RecordCredentialUsage() error = %v", err)
				}
			}

			got, err := store.GetCredential(ctx, "c1")
			if err != nil {
				t.Fatalf("GetCredential() error = %v", err)
			}
			if got.UsageCount != 5 || got.SuccessCount != 3 || got.FailureCount != 2 {
				t.Errorf("counters = %d/%d/%d, want 5/3/2",
					got.UsageCount, got.SuccessCount, got.FailureCount)
			}
			if got.UsageCount != got.SuccessCount+got.FailureCount {
				t.Errorf("usage invariant violated: %d != %d + %d",
					got.UsageCount, got.SuccessCount, got.FailureCount)
			}
			if got.LastUsedAt.IsZero() {
				t.Error("LastUsedAt not stamped")
			}
		})
	}
}

func TestStore_ListCredentialsActiveOnly(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			active := testCredential("active", 1)
			inactive := testCredential("inactive", 2)
			inactive.Active = false

			for _, cred := range []*Credential{active, inactive} {
				if err := store.InsertCredential(ctx, cred); err != nil {
					t.Fatalf("InsertCredential() error = %v", err)
				}
			}

			creds, err := store.ListCredentials(ctx, true)
			if err != nil {
				t.Fatalf("ListCredentials(activeOnly) error = %v", err)
			}
			if len(creds) != 1 || creds[0].ID != "active" {
				t.Errorf("ListCredentials(activeOnly) = %v, want only the active credential", creds)
			}
		})
	}
}

func TestStore_CallRecordLifecycle(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			rec := &CallRecord{
				RequestID:       "req-1",
				Timestamp:       time.Now().UTC().Truncate(time.Millisecond),
				Service:         "genai",
				Method:          "GenerateContent",
				Model:           "gemini-pro",
				SanitizedParams: `{"prompt":"hello"}`,
				Status:          StatusPending,
			}
			if err := store.InsertCallRecord(ctx, rec); err != nil {
				t.Fatalf("InsertCallRecord() error = %v", err)
			}

			pending, err := store.GetCallRecord(ctx, "req-1")
			if err != nil {
				t.Fatalf("GetCallRecord() error = %v", err)
			}
			if pending.Status != StatusPending {
				t.Errorf("status = %q, want pending", pending.Status)
			}

			rec.Status = StatusSuccess
			rec.ResponseTimeMs = 420
			rec.Usage = &TokenUsage{PromptTokens: 10, CompletionTokens: 25, TotalTokens: 35}
			rec.SanitizedResponse = `{"text":"hi"}`
			if err := store.CompleteCallRecord(ctx, rec); err != nil {
				t.Fatalf("CompleteCallRecord() error = %v", err)
			}

			done, err := store.GetCallRecord(ctx, "req-1")
			if err != nil {
				t.Fatalf("GetCallRecord() error = %v", err)
			}
			if done.Status != StatusSuccess || done.ResponseTimeMs != 420 {
				t.Errorf("completed record = %+v", done)
			}
			if done.Usage == nil || done.Usage.TotalTokens != 35 {
				t.Errorf("usage = %+v, want total 35", done.Usage)
			}
		})
	}
}

func TestStore_CompleteCallRecordError(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			rec := &CallRecord{
				RequestID: "req-err",
				Timestamp: time.Now().UTC(),
				Service:   "genai",
				Method:    "GenerateContent",
				Status:    StatusPending,
			}
			if err := store.InsertCallRecord(ctx, rec); err != nil {
				t.Fatalf("InsertCallRecord() error = %v", err)
			}

			rec.Status = StatusError
			rec.ResponseTimeMs = 17
			rec.ErrorType = "TransientError"
			rec.ErrorMessage = "429 Too Many Requests"
			if err := store.CompleteCallRecord(ctx, rec); err != nil {
				t.Fatalf("CompleteCallRecord() error = %v", err)
			}

			got, err := store.GetCallRecord(ctx, "req-err")
			if err != nil {
				t.Fatalf("GetCallRecord() error = %v", err)
			}
			if got.Status != StatusError || got.ErrorType != "TransientError" {
				t.Errorf("error record = %+v", got)
			}
			if got.Usage != nil {
				t.Errorf("error record usage = %+v, want nil", got.Usage)
			}
		})
	}
}

func TestStore_DeleteCallRecordsExceeding(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			now := time.Now().UTC()
			for i := 0; i < 5; i++ {
				rec := &CallRecord{
					RequestID: []string{"a", "b", "c", "d", "e"}[i],
					Timestamp: now.Add(time.Duration(i) * time.Minute),
					Service:   "genai",
					Method:    "GenerateContent",
					Status:    StatusSuccess,
				}
				if err := store.InsertCallRecord(ctx, rec); err != nil {
					t.Fatalf("InsertCallRecord() error = %v", err)
				}
			}

			deleted, err := store.DeleteCallRecordsExceeding(ctx, 2)
			if err != nil {
				t.Fatalf("DeleteCallRecordsExceeding() error = %v", err)
			}
			if deleted != 3 {
				t.Errorf("deleted = %d, want 3", deleted)
			}

			// The two newest records survive.
			for _, id := range []string{"d", "e"} {
				if _, err := store.GetCallRecord(ctx, id); err != nil {
					t.Errorf("GetCallRecord(%s) error = %v, want kept", id, err)
				}
			}
			if _, err := store.GetCallRecord(ctx, "a"); !errors.Is(err, ErrNotFound) {
				t.Errorf("oldest record survived trim: err = %v", err)
			}

			// Under the cap, nothing is deleted.
			deleted, err = store.DeleteCallRecordsExceeding(ctx, 10)
			if err != nil {
				t.Fatalf("DeleteCallRecordsExceeding() error = %v", err)
			}
			if deleted != 0 {
				t.Errorf("deleted = %d, want 0", deleted)
			}
		})
	}
}

func TestStore_DeleteCallRecordsBefore(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			now := time.Now().UTC()
			ages := map[string]time.Time{
				"old-1": now.Add(-48 * time.Hour),
				"old-2": now.Add(-25 * time.Hour),
				"new-1": now.Add(-time.Hour),
			}
			for id, ts := range ages {
				rec := &CallRecord{
					RequestID: id,
					Timestamp: ts,
					Service:   "genai",
					Method:    "GenerateContent",
					Status:    StatusSuccess,
				}
				if err := store.InsertCallRecord(ctx, rec); err != nil {
					t.Fatalf("InsertCallRecord(%s) error = %v", id, err)
				}
			}

			deleted, err := store.DeleteCallRecordsBefore(ctx, now.Add(-24*time.Hour))
			if err != nil {
				t.Fatalf("DeleteCallRecordsBefore() error = %v", err)
			}
			if deleted != 2 {
				t.Errorf("deleted = %d, want 2", deleted)
			}

			count, err := store.CountCallRecords(ctx)
			if err != nil {
				t.Fatalf("CountCallRecords() error = %v", err)
			}
			if count != 1 {
				t.Errorf("remaining = %d, want 1", count)
			}
		})
	}
}
