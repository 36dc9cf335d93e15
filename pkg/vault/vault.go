package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// MinMasterSecretLength is the minimum length for the master secret used to
// derive the encryption key.
const MinMasterSecretLength = 16

var (
	// ErrMasterSecretTooShort is returned when the configured master secret
	// does not meet the minimum length requirement.
	ErrMasterSecretTooShort = errors.New("vault: master secret too short")

	// ErrMalformedCiphertext is returned when a ciphertext cannot be decoded
	// or is shorter than the nonce it must carry.
	ErrMalformedCiphertext = errors.New("vault: malformed ciphertext")

	// ErrDecryptionFailed is returned when authentication of a ciphertext
	// fails, typically because it was tampered with or encrypted under a
	// different key.
	ErrDecryptionFailed = errors.New("vault: decryption failed")
)

// Vault seals and opens credential secrets using AES-256-GCM.
type Vault struct {
	aead cipher.AEAD
}

// New creates a Vault whose AES-256 key is derived from masterSecret via
// SHA-256. The master secret must be at least MinMasterSecretLength bytes.
func New(masterSecret string) (*Vault, error) {
	if len(masterSecret) < MinMasterSecretLength {
		return nil, fmt.Errorf("%w: need at least %d characters", ErrMasterSecretTooShort, MinMasterSecretLength)
	}

	key := sha256.Sum256([]byte(masterSecret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("vault: create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: create gcm: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext and returns a base64-encoded ciphertext.
// A fresh random nonce is drawn for every call, so two encryptions of the
// same plaintext never produce the same ciphertext.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("vault: generate nonce: %w", err)
	}

	// Nonce is prepended to the sealed payload.
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a base64-encoded ciphertext produced by Encrypt.
// It fails with ErrMalformedCiphertext on undecodable input and with
// ErrDecryptionFailed when authentication fails.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}

	nonceSize := v.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext shorter than nonce", ErrMalformedCiphertext)
	}

	nonce, payload := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := v.aead.Open(nil, nonce, payload, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}
