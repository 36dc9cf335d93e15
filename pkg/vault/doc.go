// Package vault provides authenticated encryption and masking for API
// credentials at rest.
//
// Secrets are sealed with AES-256-GCM using a random nonce per encryption,
// so encrypting the same plaintext twice produces different ciphertexts and
// any tampering with a stored ciphertext fails decryption loudly. The
// encryption key is derived from a configured master secret.
//
// The package also provides the canonical masking rule used everywhere a
// credential appears in logs or listings: the first four and last four
// characters joined by "...", or a fixed "***" marker for short values.
package vault
