// Package cache provides a bounded in-memory TTL cache with LRU eviction
// and hit/miss accounting, plus deterministic cache key derivation.
//
// Each Cache instance holds one value type, keyed by string, with a fixed
// capacity and a fixed per-entry lifetime. A background sweep removes
// expired entries between accesses so memory is reclaimed even for keys
// that are never read again.
//
// Keys for memoizing remote calls are derived with Key: the SHA-256 of a
// canonical JSON rendering (map keys sorted recursively), so two logically
// equal inputs produce the same key regardless of field order.
package cache
