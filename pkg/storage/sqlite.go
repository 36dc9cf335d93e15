package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/callisto.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database, applies the schema, and
// enables WAL mode if configured.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "storage.sqlite")

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// initialize sets up the database schema and pragmas.
func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

const insertCredentialQuery = `
	INSERT INTO credentials (
		id, name, secret_ciphertext, active, priority,
		usage_count, success_count, failure_count, last_used_at, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// InsertCredential persists a single credential.
func (s *SQLiteStore) InsertCredential(ctx context.Context, cred *Credential) error {
	_, err := s.db.ExecContext(ctx, insertCredentialQuery,
		cred.ID, cred.Name, cred.SecretCiphertext, cred.Active, cred.Priority,
		cred.UsageCount, cred.SuccessCount, cred.FailureCount,
		nullTime(cred.LastUsedAt), cred.CreatedAt,
	)
	if err != nil {
		return NewStorageError("sqlite", "insert_credential", err)
	}
	return nil
}

// InsertCredentials persists a batch of credentials in one transaction.
// The batch is all-or-nothing: any failure rolls back every insert.
func (s *SQLiteStore) InsertCredentials(ctx context.Context, creds []*Credential) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError("sqlite", "begin_batch", err)
	}

	for _, cred := range creds {
		_, err := tx.ExecContext(ctx, insertCredentialQuery,
			cred.ID, cred.Name, cred.SecretCiphertext, cred.Active, cred.Priority,
			cred.UsageCount, cred.SuccessCount, cred.FailureCount,
			nullTime(cred.LastUsedAt), cred.CreatedAt,
		)
		if err != nil {
			tx.Rollback()
			return NewStorageError("sqlite", "insert_credential_batch", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewStorageError("sqlite", "commit_batch", err)
	}
	return nil
}

const selectCredentialColumns = `
	id, name, secret_ciphertext, active, priority,
	usage_count, success_count, failure_count, last_used_at, created_at
`

// GetCredential retrieves a credential by ID.
func (s *SQLiteStore) GetCredential(ctx context.Context, id string) (*Credential, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectCredentialColumns+" FROM credentials WHERE id = ?", id)

	cred, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStorageError("sqlite", "get_credential", fmt.Errorf("%w: credential %q", ErrNotFound, id))
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "get_credential", err)
	}
	return cred, nil
}

// ListCredentials returns all credentials, or only active ones.
func (s *SQLiteStore) ListCredentials(ctx context.Context, activeOnly bool) ([]*Credential, error) {
	query := "SELECT " + selectCredentialColumns + " FROM credentials"
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, NewStorageError("sqlite", "list_credentials", err)
	}
	defer rows.Close()

	var creds []*Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan_credential", err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "list_credentials", err)
	}

	return creds, nil
}

// SetCredentialActive toggles a credential's participation in rotation.
func (s *SQLiteStore) SetCredentialActive(ctx context.Context, id string, active bool) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE credentials SET active = ? WHERE id = ?", active, id)
	if err != nil {
		return NewStorageError("sqlite", "set_credential_active", err)
	}
	return s.requireRow(result, "set_credential_active", id)
}

// DeleteCredential removes a credential.
func (s *SQLiteStore) DeleteCredential(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE id = ?", id)
	if err != nil {
		return NewStorageError("sqlite", "delete_credential", err)
	}
	return s.requireRow(result, "delete_credential", id)
}

// RecordCredentialUsage increments the usage counters in a single statement,
// keeping usage_count == success_count + failure_count.
func (s *SQLiteStore) RecordCredentialUsage(ctx context.Context, id string, success bool, usedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE credentials SET
			usage_count   = usage_count + 1,
			success_count = success_count + CASE WHEN ? THEN 1 ELSE 0 END,
			failure_count = failure_count + CASE WHEN ? THEN 0 ELSE 1 END,
			last_used_at  = ?
		WHERE id = ?`,
		success, success, usedAt, id)
	if err != nil {
		return NewStorageError("sqlite", "record_credential_usage", err)
	}
	return s.requireRow(result, "record_credential_usage", id)
}

// InsertCallRecord persists a new pending call record.
func (s *SQLiteStore) InsertCallRecord(ctx context.Context, rec *CallRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_records (
			request_id, timestamp, service, method, model,
			sanitized_params, status, response_time_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Timestamp, rec.Service, rec.Method, rec.Model,
		rec.SanitizedParams, string(rec.Status), rec.ResponseTimeMs,
	)
	if err != nil {
		return NewStorageError("sqlite", "insert_call_record", err)
	}
	return nil
}

// CompleteCallRecord updates the pending record with its terminal state.
func (s *SQLiteStore) CompleteCallRecord(ctx context.Context, rec *CallRecord) error {
	var promptTokens, completionTokens, totalTokens interface{}
	if rec.Usage != nil {
		promptTokens = rec.Usage.PromptTokens
		completionTokens = rec.Usage.CompletionTokens
		totalTokens = rec.Usage.TotalTokens
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE call_records SET
			status             = ?,
			response_time_ms   = ?,
			prompt_tokens      = ?,
			completion_tokens  = ?,
			total_tokens       = ?,
			sanitized_response = ?,
			error_type         = NULLIF(?, ''),
			error_message      = NULLIF(?, '')
		WHERE request_id = ?`,
		string(rec.Status), rec.ResponseTimeMs,
		promptTokens, completionTokens, totalTokens,
		rec.SanitizedResponse, rec.ErrorType, rec.ErrorMessage,
		rec.RequestID,
	)
	if err != nil {
		return NewStorageError("sqlite", "complete_call_record", err)
	}
	return s.requireRow(result, "complete_call_record", rec.RequestID)
}

const selectCallRecordColumns = `
	request_id, timestamp, service, method, model,
	sanitized_params, status, response_time_ms,
	prompt_tokens, completion_tokens, total_tokens,
	sanitized_response, error_type, error_message
`

// GetCallRecord retrieves a call record by request ID.
func (s *SQLiteStore) GetCallRecord(ctx context.Context, requestID string) (*CallRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectCallRecordColumns+" FROM call_records WHERE request_id = ?", requestID)

	rec, err := scanCallRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStorageError("sqlite", "get_call_record", fmt.Errorf("%w: call record %q", ErrNotFound, requestID))
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "get_call_record", err)
	}
	return rec, nil
}

// ListCallRecords returns the most recent call records, newest first.
func (s *SQLiteStore) ListCallRecords(ctx context.Context, limit int) ([]*CallRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectCallRecordColumns+" FROM call_records ORDER BY timestamp DESC LIMIT ?", limit)
	if err != nil {
		return nil, NewStorageError("sqlite", "list_call_records", err)
	}
	defer rows.Close()

	var records []*CallRecord
	for rows.Next() {
		rec, err := scanCallRecord(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan_call_record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "list_call_records", err)
	}

	return records, nil
}

// CountCallRecords returns the total number of call records.
func (s *SQLiteStore) CountCallRecords(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM call_records").Scan(&count); err != nil {
		return 0, NewStorageError("sqlite", "count_call_records", err)
	}
	return count, nil
}

// DeleteCallRecordsBefore removes call records started before cutoff.
func (s *SQLiteStore) DeleteCallRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM call_records WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, NewStorageError("sqlite", "delete_call_records", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, NewStorageError("sqlite", "delete_call_records", err)
	}
	return count, nil
}

// DeleteCallRecordsExceeding removes the oldest call records so that at
// most max remain.
func (s *SQLiteStore) DeleteCallRecordsExceeding(ctx context.Context, max int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM call_records WHERE request_id IN (
			SELECT request_id FROM call_records
			ORDER BY timestamp DESC
			LIMIT -1 OFFSET ?
		)`, max)
	if err != nil {
		return 0, NewStorageError("sqlite", "trim_call_records", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, NewStorageError("sqlite", "trim_call_records", err)
	}
	return count, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("sqlite storage closed")
	return nil
}

// requireRow converts a zero-rows-affected result into a not-found error.
func (s *SQLiteStore) requireRow(result sql.Result, op, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return NewStorageError("sqlite", op, err)
	}
	if affected == 0 {
		return NewStorageError("sqlite", op, fmt.Errorf("%w: %q", ErrNotFound, id))
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCredential(row scanner) (*Credential, error) {
	var cred Credential
	var lastUsedAt sql.NullTime

	err := row.Scan(
		&cred.ID, &cred.Name, &cred.SecretCiphertext, &cred.Active, &cred.Priority,
		&cred.UsageCount, &cred.SuccessCount, &cred.FailureCount,
		&lastUsedAt, &cred.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastUsedAt.Valid {
		cred.LastUsedAt = lastUsedAt.Time
	}
	return &cred, nil
}

func scanCallRecord(row scanner) (*CallRecord, error) {
	var rec CallRecord
	var status string
	var model, sanitizedParams, sanitizedResponse sql.NullString
	var promptTokens, completionTokens, totalTokens sql.NullInt64
	var errorType, errorMessage sql.NullString

	err := row.Scan(
		&rec.RequestID, &rec.Timestamp, &rec.Service, &rec.Method, &model,
		&sanitizedParams, &status, &rec.ResponseTimeMs,
		&promptTokens, &completionTokens, &totalTokens,
		&sanitizedResponse, &errorType, &errorMessage,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = CallStatus(status)
	rec.Model = model.String
	rec.SanitizedParams = sanitizedParams.String
	rec.SanitizedResponse = sanitizedResponse.String
	rec.ErrorType = errorType.String
	rec.ErrorMessage = errorMessage.String

	if totalTokens.Valid {
		rec.Usage = &TokenUsage{
			PromptTokens:     int(promptTokens.Int64),
			CompletionTokens: int(completionTokens.Int64),
			TotalTokens:      int(totalTokens.Int64),
		}
	}

	return &rec, nil
}

// nullTime converts a zero time into a SQL NULL.
func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
