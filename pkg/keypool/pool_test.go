package keypool

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"halcyon-hq/callisto/pkg/storage"
	"halcyon-hq/callisto/pkg/vault"
)

const (
	validKey  = "AIzaSyDemoKey1234567890abcdefghijklmn"
	validKey2 = "AIzaSyOtherKey234567890abcdefghijklmn"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()

	v, err := vault.New("keypool-test-master-secret-123456")
	if err != nil {
		t.Fatalf("vault.New() error = %v", err)
	}
	return New(storage.NewMemoryStore(), v)
}

// rotationObserver counts the rotation events the pool reports.
type rotationObserver struct {
	selections map[string]int
	successes  int
	failures   int
}

func (o *rotationObserver) RecordKeySelection(strategy string) {
	if o.selections == nil {
		o.selections = make(map[string]int)
	}
	o.selections[strategy]++
}

func (o *rotationObserver) RecordKeyUsage(success bool) {
	if success {
		o.successes++
	} else {
		o.failures++
	}
}

func TestPool_ObserverSeesRotationEvents(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)
	obs := &rotationObserver{}
	p.SetObserver(obs)

	id, err := p.AddKey(ctx, "demo", validKey, 1)
	if err != nil {
		t.Fatalf("AddKey() error = %v", err)
	}

	if _, err := p.NextKey(ctx, StrategyPriority); err != nil {
		t.Fatalf("NextKey() error = %v", err)
	}
	if _, err := p.NextKey(ctx, StrategyRoundRobin); err != nil {
		t.Fatalf("NextKey() error = %v", err)
	}
	if err := p.RecordUsage(ctx, id, true); err != nil {
		t.Fatalf("RecordUsage() error = %v", err)
	}
	if err := p.RecordUsage(ctx, id, false); err != nil {
		t.Fatalf("RecordUsage() error = %v", err)
	}

	if got := obs.selections["priority"]; got != 1 {
		t.Errorf("priority selections = %d, want 1", got)
	}
	if got := obs.selections["round-robin"]; got != 1 {
		t.Errorf("round-robin selections = %d, want 1", got)
	}
	if obs.successes != 1 || obs.failures != 1 {
		t.Errorf("usage successes/failures = %d/%d, want 1/1", obs.successes, obs.failures)
	}

	// A failed recording must not reach the observer.
	if err := p.RecordUsage(ctx, "no-such-id", true); err == nil {
		t.Fatal("RecordUsage(no-such-id) error = nil, want error")
	}
	if obs.successes != 1 {
		t.Errorf("successes after failed recording = %d, want 1", obs.successes)
	}
}

func TestPool_AddKeyValidation(t *testing.T) {
	tests := []struct {
		name      string
		keyName   string
		secret    string
		wantErr   bool
		wantField string
	}{
		{
			name:    "valid key",
			keyName: "demo",
			secret:  validKey,
			wantErr: false,
		},
		{
			name:      "missing name",
			keyName:   "",
			secret:    validKey,
			wantErr:   true,
			wantField: "name",
		},
		{
			name:      "wrong prefix",
			keyName:   "bad",
			secret:    "XYZaSyDemoKey1234567890abcdefghijklmn",
			wantErr:   true,
			wantField: "secret",
		},
		{
			name:      "too short",
			keyName:   "short",
			secret:    "AIzaShort",
			wantErr:   true,
			wantField: "secret",
		},
		{
			name:      "too long",
			keyName:   "long",
			secret:    "AIza" + strings.Repeat("x", MaxKeyLength),
			wantErr:   true,
			wantField: "secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newTestPool(t)

			_, err := pool.AddKey(context.Background(), tt.keyName, tt.secret, 10)
			if (err != nil) != tt.wantErr {
				t.Fatalf("AddKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("AddKey() error = %T, want *ValidationError", err)
				}
				if verr.Field != tt.wantField {
					t.Errorf("ValidationError.Field = %q, want %q", verr.Field, tt.wantField)
				}
			}
		})
	}
}

func TestPool_AddKeysAllOrNothing(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	specs := []KeySpec{
		{Name: "ok", Secret: validKey, Priority: 1},
		{Name: "bad", Secret: "invalid", Priority: 2},
	}
	if _, err := pool.AddKeys(ctx, specs); err == nil {
		t.Fatal("AddKeys() with invalid entry succeeded, want error")
	}

	keys, err := pool.ListKeys(ctx)
	if err != nil {
		t.Fatalf("ListKeys() error = %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("after failed batch, %d keys persisted, want 0", len(keys))
	}

	// A fully valid batch persists every entry.
	ids, err := pool.AddKeys(ctx, []KeySpec{
		{Name: "a", Secret: validKey, Priority: 1},
		{Name: "b", Secret: validKey2, Priority: 2},
	})
	if err != nil {
		t.Fatalf("AddKeys() error = %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("AddKeys() returned %d ids, want 2", len(ids))
	}
}

func TestPool_NextKeyPriority(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	if _, err := pool.AddKey(ctx, "demo", validKey, 10); err != nil {
		t.Fatalf("AddKey() error = %v", err)
	}
	if _, err := pool.AddKey(ctx, "other", validKey2, 50); err != nil {
		t.Fatalf("AddKey() error = %v", err)
	}

	key, err := pool.NextKey(ctx, StrategyPriority)
	if err != nil {
		t.Fatalf("NextKey() error = %v", err)
	}
	if key.Name != "demo" {
		t.Errorf("NextKey(priority) = %q, want %q", key.Name, "demo")
	}
	if key.Secret != validKey {
		t.Errorf("NextKey() secret = %q, want decrypted plaintext", key.Secret)
	}
}

func TestPool_NextKeyPriorityTieNewestWins(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	older := &storage.Credential{
		ID: "older", Name: "older", Active: true, Priority: 10,
		SecretCiphertext: mustEncrypt(t, pool, validKey),
		CreatedAt:        time.Now().Add(-time.Hour),
	}
	newer := &storage.Credential{
		ID: "newer", Name: "newer", Active: true, Priority: 10,
		SecretCiphertext: mustEncrypt(t, pool, validKey2),
		CreatedAt:        time.Now(),
	}
	store := pool.store
	for _, cred := range []*storage.Credential{older, newer} {
		if err := store.InsertCredential(ctx, cred); err != nil {
			t.Fatalf("InsertCredential() error = %v", err)
		}
	}

	key, err := pool.NextKey(ctx, StrategyPriority)
	if err != nil {
		t.Fatalf("NextKey() error = %v", err)
	}
	if key.Name != "newer" {
		t.Errorf("NextKey(priority tie) = %q, want newest credential", key.Name)
	}
}

func TestPool_NextKeyRoundRobin(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	id1, err := pool.AddKey(ctx, "first", validKey, 1)
	if err != nil {
		t.Fatalf("AddKey() error = %v", err)
	}
	if _, err := pool.AddKey(ctx, "second", validKey2, 2); err != nil {
		t.Fatalf("AddKey() error = %v", err)
	}

	// Both keys are unused: the tie breaks toward the lower priority value.
	key, err := pool.NextKey(ctx, StrategyRoundRobin)
	if err != nil {
		t.Fatalf("NextKey() error = %v", err)
	}
	if key.Name != "first" {
		t.Errorf("NextKey(round-robin, all unused) = %q, want %q", key.Name, "first")
	}

	// After the first key is used, the still-unused key must come next.
	if err := pool.RecordUsage(ctx, id1, true); err != nil {
		t.Fatalf("RecordUsage() error = %v", err)
	}
	key, err = pool.NextKey(ctx, StrategyRoundRobin)
	if err != nil {
		t.Fatalf("NextKey() error = %v", err)
	}
	if key.Name != "second" {
		t.Errorf("NextKey(round-robin, after use) = %q, want %q", key.Name, "second")
	}
}

func TestPool_NextKeyLeastUsed(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	id1, err := pool.AddKey(ctx, "busy", validKey, 1)
	if err != nil {
		t.Fatalf("AddKey() error = %v", err)
	}
	if _, err := pool.AddKey(ctx, "idle", validKey2, 2); err != nil {
		t.Fatalf("AddKey() error = %v", err)
	}

	for range 3 {
		if err := pool.RecordUsage(ctx, id1, true); err != nil {
			t.Fatalf("RecordUsage() error = %v", err)
		}
	}

	key, err := pool.NextKey(ctx, StrategyLeastUsed)
	if err != nil {
		t.Fatalf("NextKey() error = %v", err)
	}
	if key.Name != "idle" {
		t.Errorf("NextKey(least-used) = %q, want %q", key.Name, "idle")
	}
}

func TestPool_SingleActiveKeyUnderAnyStrategy(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	keepID, err := pool.AddKey(ctx, "keep", validKey, 50)
	if err != nil {
		t.Fatalf("AddKey() error = %v", err)
	}
	otherID, err := pool.AddKey(ctx, "other", validKey2, 1)
	if err != nil {
		t.Fatalf("AddKey() error = %v", err)
	}
	if err := pool.SetActive(ctx, otherID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	for _, strategy := range []StrategyType{StrategyPriority, StrategyRoundRobin, StrategyLeastUsed, StrategyRandom} {
		key, err := pool.NextKey(ctx, strategy)
		if err != nil {
			t.Fatalf("NextKey(%s) error = %v", strategy, err)
		}
		if key.ID != keepID {
			t.Errorf("NextKey(%s) = %q, want the only active key", strategy, key.Name)
		}
	}
}

func TestPool_NextKeyNoActiveCredentials(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	if _, err := pool.NextKey(ctx, StrategyPriority); !errors.Is(err, ErrNoAvailableKey) {
		t.Errorf("NextKey() on empty pool error = %v, want ErrNoAvailableKey", err)
	}

	id, err := pool.AddKey(ctx, "disabled", validKey, 1)
	if err != nil {
		t.Fatalf("AddKey() error = %v", err)
	}
	if err := pool.SetActive(ctx, id, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	if _, err := pool.NextKey(ctx, StrategyRandom); !errors.Is(err, ErrNoAvailableKey) {
		t.Errorf("NextKey() with all disabled error = %v, want ErrNoAvailableKey", err)
	}
}

func TestPool_ListKeysMasked(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	if _, err := pool.AddKey(ctx, "demo", validKey, 10); err != nil {
		t.Fatalf("AddKey() error = %v", err)
	}

	keys, err := pool.ListKeys(ctx)
	if err != nil {
		t.Fatalf("ListKeys() error = %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("ListKeys() returned %d keys, want 1", len(keys))
	}

	want := "AIza...klmn"
	if keys[0].MaskedSecret != want {
		t.Errorf("MaskedSecret = %q, want %q", keys[0].MaskedSecret, want)
	}
	if strings.Contains(keys[0].MaskedSecret, validKey[5:25]) {
		t.Error("ListKeys() leaked plaintext secret material")
	}
}

func TestPool_RecordUsageCounters(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	id, err := pool.AddKey(ctx, "demo", validKey, 10)
	if err != nil {
		t.Fatalf("AddKey() error = %v", err)
	}

	if err := pool.RecordUsage(ctx, id, true); err != nil {
		t.Fatalf("RecordUsage() error = %v", err)
	}
	if err := pool.RecordUsage(ctx, id, false); err != nil {
		t.Fatalf("RecordUsage() error = %v", err)
	}

	keys, err := pool.ListKeys(ctx)
	if err != nil {
		t.Fatalf("ListKeys() error = %v", err)
	}
	info := keys[0]
	if info.UsageCount != 2 || info.SuccessCount != 1 || info.FailureCount != 1 {
		t.Errorf("counters = %d/%d/%d, want 2/1/1",
			info.UsageCount, info.SuccessCount, info.FailureCount)
	}
	if info.UsageCount != info.SuccessCount+info.FailureCount {
		t.Error("usage invariant violated")
	}
}

func mustEncrypt(t *testing.T, pool *Pool, secret string) string {
	t.Helper()
	ciphertext, err := pool.vault.Encrypt(secret)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	return ciphertext
}
