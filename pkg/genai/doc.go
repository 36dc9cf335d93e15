// Package genai is the thin HTTP client for the remote generative AI
// service. It owns the wire types, the typed error taxonomy carrying HTTP
// status codes, and the adapters that map the upstream response's usage
// metadata onto the canonical Usage struct.
//
// The package performs no retries of its own. Errors carry enough
// information (status code, retry-after hint) for the retry engine to
// classify them.
package genai
