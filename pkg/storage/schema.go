package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the credentials and call_records tables with their indexes.
const Schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS credentials (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	secret_ciphertext TEXT NOT NULL,
	active            INTEGER NOT NULL DEFAULT 1,
	priority          INTEGER NOT NULL DEFAULT 100,
	usage_count       INTEGER NOT NULL DEFAULT 0,
	success_count     INTEGER NOT NULL DEFAULT 0,
	failure_count     INTEGER NOT NULL DEFAULT 0,
	last_used_at      TIMESTAMP,
	created_at        TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_credentials_active
	ON credentials(active);
CREATE INDEX IF NOT EXISTS idx_credentials_priority
	ON credentials(priority);

CREATE TABLE IF NOT EXISTS call_records (
	request_id         TEXT PRIMARY KEY,
	timestamp          TIMESTAMP NOT NULL,
	service            TEXT NOT NULL,
	method             TEXT NOT NULL,
	model              TEXT,
	sanitized_params   TEXT,
	status             TEXT NOT NULL,
	response_time_ms   INTEGER NOT NULL DEFAULT 0,
	prompt_tokens      INTEGER,
	completion_tokens  INTEGER,
	total_tokens       INTEGER,
	sanitized_response TEXT,
	error_type         TEXT,
	error_message      TEXT
);

CREATE INDEX IF NOT EXISTS idx_call_records_timestamp
	ON call_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_call_records_service_method
	ON call_records(service, method);
`

// InsertSchemaVersion records the schema version, ignoring duplicates.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?);`

// GetSchemaVersion reads the highest recorded schema version.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version;`
