package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Key derives a deterministic cache key from a call payload and its options.
// The key is the hex SHA-256 of a canonical JSON rendering: map keys are
// sorted recursively, so two logically equal inputs hash identically
// regardless of field order. Byte slices are hashed by content, so distinct
// buffers with equal bytes share a key and differing buffers do not.
func Key(payload, options any) (string, error) {
	canonical, err := canonicalize(map[string]any{
		"payload": payload,
		"options": options,
	})
	if err != nil {
		return "", fmt.Errorf("cache: canonicalize key input: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize produces a deterministic JSON representation of v.
// Maps are emitted with sorted keys; everything else round-trips through
// encoding/json, which already sorts map keys but is applied recursively
// here so nested any-typed containers stay deterministic too.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	case []byte:
		// Hash byte payloads by content, not by JSON base64 framing.
		sum := sha256.Sum256(val)
		return json.Marshal("bytes:" + hex.EncodeToString(sum[:]))
	default:
		// Structs and scalars: normalize through a JSON round trip so that
		// struct inputs and equivalent map inputs canonicalize identically.
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return nil, err
		}
		switch generic.(type) {
		case map[string]any, []any:
			return canonicalize(generic)
		}
		return raw, nil
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return result, nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}

		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, ']')

	return result, nil
}
