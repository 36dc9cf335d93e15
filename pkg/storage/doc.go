// Package storage defines the persisted entities of the gateway core and the
// Store interface over them, with SQLite and in-memory backends.
//
// Two tables are persisted: credentials (the key rotation pool's state) and
// call_records (one row per intercepted API call). All single mutations are
// single-statement upserts; the only multi-statement transaction is the
// all-or-nothing batch credential insert.
//
// Every failure crossing the Store boundary is wrapped in a StorageError
// identifying the backend and operation, with the driver error as the cause.
package storage
