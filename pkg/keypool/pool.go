package keypool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"halcyon-hq/callisto/pkg/storage"
	"halcyon-hq/callisto/pkg/vault"
)

const (
	// KeyPrefix is the required prefix for API keys accepted by the pool.
	KeyPrefix = "AIza"

	// MinKeyLength and MaxKeyLength bound the accepted key length.
	MinKeyLength = 30
	MaxKeyLength = 60

	// DefaultPriority is assigned when a credential is added without one.
	DefaultPriority = 100
)

// SelectedKey is the result of a pool selection: the credential identity
// plus its decrypted plaintext secret.
type SelectedKey struct {
	ID       string
	Name     string
	Priority int

	// Secret is the decrypted plaintext API key.
	Secret string
}

// KeyInfo is the listing view of a credential. The secret appears only in
// masked form.
type KeyInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MaskedSecret string    `json:"masked_secret"`
	Active       bool      `json:"active"`
	Priority     int       `json:"priority"`
	UsageCount   int64     `json:"usage_count"`
	SuccessCount int64     `json:"success_count"`
	FailureCount int64     `json:"failure_count"`
	LastUsedAt   time.Time `json:"last_used_at,omitzero"`
	CreatedAt    time.Time `json:"created_at"`
}

// Observer receives key rotation events for export to an external metrics
// backend. Implementations must be safe for concurrent use.
type Observer interface {
	RecordKeySelection(strategy string)
	RecordKeyUsage(success bool)
}

// Pool manages the credential pool over a storage backend and a vault.
type Pool struct {
	store    storage.Store
	vault    *vault.Vault
	logger   *slog.Logger
	observer Observer
}

// New creates a Pool.
func New(store storage.Store, v *vault.Vault) *Pool {
	return &Pool{
		store:  store,
		vault:  v,
		logger: slog.Default().With("component", "keypool"),
	}
}

// SetObserver attaches obs to the pool. Call before the pool is shared
// between goroutines.
func (p *Pool) SetObserver(obs Observer) {
	p.observer = obs
}

// validateKey checks the credential format before persistence.
func validateKey(name, secret string) error {
	if name == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if len(secret) < MinKeyLength || len(secret) > MaxKeyLength {
		return &ValidationError{
			Field:   "secret",
			Message: fmt.Sprintf("length must be between %d and %d characters", MinKeyLength, MaxKeyLength),
		}
	}
	if secret[:len(KeyPrefix)] != KeyPrefix {
		return &ValidationError{
			Field:   "secret",
			Message: fmt.Sprintf("must start with %q", KeyPrefix),
		}
	}
	return nil
}

// seal validates and encrypts one credential, producing the row to persist.
func (p *Pool) seal(name, secret string, priority int) (*storage.Credential, error) {
	if err := validateKey(name, secret); err != nil {
		return nil, err
	}

	ciphertext, err := p.vault.Encrypt(secret)
	if err != nil {
		return nil, fmt.Errorf("keypool: seal credential %q: %w", name, err)
	}

	if priority <= 0 {
		priority = DefaultPriority
	}

	return &storage.Credential{
		ID:               uuid.New().String(),
		Name:             name,
		SecretCiphertext: ciphertext,
		Active:           true,
		Priority:         priority,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// AddKey validates, encrypts and persists a single credential.
// Returns the assigned credential ID.
func (p *Pool) AddKey(ctx context.Context, name, secret string, priority int) (string, error) {
	cred, err := p.seal(name, secret, priority)
	if err != nil {
		return "", err
	}

	if err := p.store.InsertCredential(ctx, cred); err != nil {
		return "", err
	}

	p.logger.Info("credential added",
		"id", cred.ID,
		"name", cred.Name,
		"priority", cred.Priority,
		"secret", vault.Mask(secret),
	)
	return cred.ID, nil
}

// KeySpec describes one credential in a batch add.
type KeySpec struct {
	Name     string
	Secret   string
	Priority int
}

// AddKeys validates and persists a batch of credentials all-or-nothing:
// one invalid key rejects the whole batch, and a storage failure persists
// none of them.
func (p *Pool) AddKeys(ctx context.Context, specs []KeySpec) ([]string, error) {
	if len(specs) == 0 {
		return nil, &ValidationError{Field: "keys", Message: "batch must not be empty"}
	}

	creds := make([]*storage.Credential, 0, len(specs))
	ids := make([]string, 0, len(specs))
	for i, spec := range specs {
		cred, err := p.seal(spec.Name, spec.Secret, spec.Priority)
		if err != nil {
			return nil, fmt.Errorf("keypool: batch entry %d: %w", i, err)
		}
		creds = append(creds, cred)
		ids = append(ids, cred.ID)
	}

	if err := p.store.InsertCredentials(ctx, creds); err != nil {
		return nil, err
	}

	p.logger.Info("credential batch added", "count", len(creds))
	return ids, nil
}

// NextKey selects exactly one active credential using the given strategy
// and returns its decrypted plaintext secret.
// Returns ErrNoAvailableKey when zero active credentials exist.
func (p *Pool) NextKey(ctx context.Context, strategyType StrategyType) (*SelectedKey, error) {
	strategy, err := NewStrategy(strategyType)
	if err != nil {
		return nil, err
	}

	candidates, err := p.store.ListCredentials(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoAvailableKey
	}

	cred := strategy.Select(candidates)

	secret, err := p.vault.Decrypt(cred.SecretCiphertext)
	if err != nil {
		return nil, fmt.Errorf("keypool: unseal credential %q: %w", cred.ID, err)
	}

	p.logger.Debug("credential selected",
		"id", cred.ID,
		"name", cred.Name,
		"strategy", strategy.Name(),
	)
	if p.observer != nil {
		p.observer.RecordKeySelection(strategy.Name())
	}

	return &SelectedKey{
		ID:       cred.ID,
		Name:     cred.Name,
		Priority: cred.Priority,
		Secret:   secret,
	}, nil
}

// RecordUsage increments the usage counter and exactly one of the success
// or failure counters, stamping the last-used time.
func (p *Pool) RecordUsage(ctx context.Context, id string, success bool) error {
	if err := p.store.RecordCredentialUsage(ctx, id, success, time.Now().UTC()); err != nil {
		return err
	}
	if p.observer != nil {
		p.observer.RecordKeyUsage(success)
	}
	return nil
}

// SetActive toggles a credential's participation in rotation.
func (p *Pool) SetActive(ctx context.Context, id string, active bool) error {
	return p.store.SetCredentialActive(ctx, id, active)
}

// DeleteKey removes a credential.
func (p *Pool) DeleteKey(ctx context.Context, id string) error {
	return p.store.DeleteCredential(ctx, id)
}

// ListKeys returns every credential with its secret masked.
// Plaintext never leaves this method.
func (p *Pool) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	creds, err := p.store.ListCredentials(ctx, false)
	if err != nil {
		return nil, err
	}

	infos := make([]KeyInfo, 0, len(creds))
	for _, cred := range creds {
		masked := vault.RedactionMarker
		if secret, err := p.vault.Decrypt(cred.SecretCiphertext); err == nil {
			masked = vault.Mask(secret)
		}

		infos = append(infos, KeyInfo{
			ID:           cred.ID,
			Name:         cred.Name,
			MaskedSecret: masked,
			Active:       cred.Active,
			Priority:     cred.Priority,
			UsageCount:   cred.UsageCount,
			SuccessCount: cred.SuccessCount,
			FailureCount: cred.FailureCount,
			LastUsedAt:   cred.LastUsedAt,
			CreatedAt:    cred.CreatedAt,
		})
	}
	return infos, nil
}
