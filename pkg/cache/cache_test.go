package cache

import (
	"fmt"
	"testing"
	"time"
)

func newTestCache(t *testing.T, maxSize int, ttl time.Duration) *Cache[string] {
	t.Helper()
	c := New[string](maxSize, ttl, time.Hour) // sweep effectively disabled
	t.Cleanup(c.Close)
	return c
}

// recordingObserver counts the events the cache reports.
type recordingObserver struct {
	hits, misses, evictions int
	size                    int
}

func (o *recordingObserver) RecordCacheHit()       { o.hits++ }
func (o *recordingObserver) RecordCacheMiss()      { o.misses++ }
func (o *recordingObserver) RecordCacheEviction()  { o.evictions++ }
func (o *recordingObserver) UpdateCacheSize(n int) { o.size = n }

func TestCache_ObserverSeesEvents(t *testing.T) {
	c := newTestCache(t, 2, time.Minute)
	obs := &recordingObserver{}
	c.SetObserver(obs)

	c.Set("k1", "v1")
	c.Set("k2", "v2")
	c.Get("k1")
	c.Get("absent")
	c.Set("k3", "v3") // evicts k2, the least recently used

	if obs.hits != 1 || obs.misses != 1 {
		t.Errorf("observer hits/misses = %d/%d, want 1/1", obs.hits, obs.misses)
	}
	if obs.evictions != 1 {
		t.Errorf("observer evictions = %d, want 1", obs.evictions)
	}
	if obs.size != 2 {
		t.Errorf("observer size = %d, want 2", obs.size)
	}

	c.Clear()
	if obs.size != 0 {
		t.Errorf("observer size after Clear = %d, want 0", obs.size)
	}
}

func TestCache_GetSet(t *testing.T) {
	c := newTestCache(t, 10, time.Minute)

	c.Set("k1", "v1")

	got, ok := c.Get("k1")
	if !ok || got != "v1" {
		t.Errorf("Get(k1) = %q, %v; want %q, true", got, ok, "v1")
	}

	if _, ok := c.Get("absent"); ok {
		t.Error("Get(absent) = hit, want miss")
	}
}

func TestCache_LRUEviction(t *testing.T) {
	c := newTestCache(t, 3, time.Minute)

	c.Set("k1", "v1")
	c.Set("k2", "v2")
	c.Set("k3", "v3")
	// k1 is the oldest unaccessed key; the fourth set must evict it.
	c.Set("k4", "v4")

	if _, ok := c.Get("k1"); ok {
		t.Error("Get(k1) = hit, want eviction of oldest key")
	}
	for _, key := range []string{"k2", "k3", "k4"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("Get(%s) = miss, want hit", key)
		}
	}

	stats := c.Stats()
	if stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", stats.Evictions)
	}
	if stats.CurrentSize != 3 {
		t.Errorf("CurrentSize = %d, want 3", stats.CurrentSize)
	}
}

func TestCache_AccessProtectsFromEviction(t *testing.T) {
	c := newTestCache(t, 3, time.Minute)

	c.Set("k1", "v1")
	c.Set("k2", "v2")
	c.Set("k3", "v3")

	// Touch k1 so k2 becomes the least recently used.
	if _, ok := c.Get("k1"); !ok {
		t.Fatal("Get(k1) = miss, want hit")
	}

	c.Set("k4", "v4")

	if _, ok := c.Get("k2"); ok {
		t.Error("Get(k2) = hit, want LRU eviction")
	}
	if _, ok := c.Get("k1"); !ok {
		t.Error("Get(k1) = miss, recently used key must survive")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := newTestCache(t, 10, 30*time.Millisecond)

	c.Set("k1", "v1")

	if _, ok := c.Get("k1"); !ok {
		t.Fatal("Get(k1) before ttl = miss, want hit")
	}

	time.Sleep(50 * time.Millisecond)

	if _, ok := c.Get("k1"); ok {
		t.Error("Get(k1) after ttl = hit, want miss")
	}

	stats := c.Stats()
	if stats.Expirations != 1 {
		t.Errorf("Expirations = %d, want 1", stats.Expirations)
	}
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Hits/Misses = %d/%d, want 1/1", stats.Hits, stats.Misses)
	}
}

func TestCache_HasDoesNotTouchRecency(t *testing.T) {
	c := newTestCache(t, 3, time.Minute)

	c.Set("k1", "v1")
	c.Set("k2", "v2")
	c.Set("k3", "v3")

	// Has must not promote k1; it stays the eviction candidate.
	if !c.Has("k1") {
		t.Fatal("Has(k1) = false, want true")
	}

	c.Set("k4", "v4")

	if c.Has("k1") {
		t.Error("k1 survived eviction despite being least recently used")
	}
}

func TestCache_HasExpiry(t *testing.T) {
	c := newTestCache(t, 10, 20*time.Millisecond)

	c.Set("k1", "v1")
	time.Sleep(40 * time.Millisecond)

	if c.Has("k1") {
		t.Error("Has(k1) after ttl = true, want false")
	}
	if stats := c.Stats(); stats.Expirations != 1 {
		t.Errorf("Expirations = %d, want 1", stats.Expirations)
	}
}

func TestCache_Overwrite(t *testing.T) {
	c := newTestCache(t, 2, time.Minute)

	c.Set("k1", "old")
	c.Set("k1", "new")

	got, ok := c.Get("k1")
	if !ok || got != "new" {
		t.Errorf("Get(k1) = %q, %v; want overwritten value", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after overwrite", c.Len())
	}
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := newTestCache(t, 10, time.Minute)

	c.Set("k1", "v1")
	c.Set("k2", "v2")

	if !c.Delete("k1") {
		t.Error("Delete(k1) = false, want true")
	}
	if c.Delete("k1") {
		t.Error("Delete(k1) twice = true, want false")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
}

func TestCache_StatsHitRate(t *testing.T) {
	c := newTestCache(t, 10, time.Minute)

	c.Set("k1", "v1")
	c.Get("k1")     // hit
	c.Get("k1")     // hit
	c.Get("absent") // miss

	stats := c.Stats()
	if stats.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", stats.TotalRequests)
	}
	if stats.HitRate != 66.67 {
		t.Errorf("HitRate = %v, want 66.67", stats.HitRate)
	}
}

func TestCache_BackgroundSweep(t *testing.T) {
	c := New[string](10, 20*time.Millisecond, 30*time.Millisecond)
	defer c.Close()

	c.Set("k1", "v1")
	c.Set("k2", "v2")

	// Wait for entries to expire and the sweep to fire.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.Len() == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after sweep", c.Len())
	}
	if stats := c.Stats(); stats.Expirations != 2 {
		t.Errorf("Expirations = %d, want 2", stats.Expirations)
	}
}

func TestCache_EvictionScenario(t *testing.T) {
	// maxSize=3, set k1..k4: k1 evicted, k2..k4 hits.
	c := newTestCache(t, 3, time.Second)

	for i := 1; i <= 4; i++ {
		c.Set(fmt.Sprintf("k%d", i), fmt.Sprintf("v%d", i))
	}

	if _, ok := c.Get("k1"); ok {
		t.Error("Get(k1) = hit, want miss")
	}
	for i := 2; i <= 4; i++ {
		if _, ok := c.Get(fmt.Sprintf("k%d", i)); !ok {
			t.Errorf("Get(k%d) = miss, want hit", i)
		}
	}
}

func TestKey_MapOrderIndependence(t *testing.T) {
	k1, err := Key(map[string]any{"a": 1, "b": 2}, nil)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	k2, err := Key(map[string]any{"b": 2, "a": 1}, nil)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	if k1 != k2 {
		t.Errorf("keys differ for logically equal maps: %s != %s", k1, k2)
	}
}

func TestKey_NestedOrderIndependence(t *testing.T) {
	k1, err := Key(map[string]any{"outer": map[string]any{"x": 1, "y": 2}}, map[string]any{"t": 0.5})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	k2, err := Key(map[string]any{"outer": map[string]any{"y": 2, "x": 1}}, map[string]any{"t": 0.5})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	if k1 != k2 {
		t.Error("keys differ for logically equal nested maps")
	}
}

func TestKey_DistinguishesInputs(t *testing.T) {
	k1, err := Key(map[string]any{"prompt": "hello"}, nil)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	k2, err := Key(map[string]any{"prompt": "goodbye"}, nil)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	k3, err := Key(map[string]any{"prompt": "hello"}, map[string]any{"temperature": 1})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	if k1 == k2 {
		t.Error("distinct payloads produced identical keys")
	}
	if k1 == k3 {
		t.Error("distinct options produced identical keys")
	}
}

func TestKey_ByteContent(t *testing.T) {
	// Two distinct buffers with equal content share a key.
	k1, err := Key([]byte{1, 2, 3}, nil)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	k2, err := Key([]byte{1, 2, 3}, nil)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	k3, err := Key([]byte{1, 2, 4}, nil)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	if k1 != k2 {
		t.Error("equal byte buffers produced different keys")
	}
	if k1 == k3 {
		t.Error("distinct byte buffers produced identical keys")
	}
}

func TestKey_StructAndMapEquivalence(t *testing.T) {
	type payload struct {
		Prompt string `json:"prompt"`
		Model  string `json:"model"`
	}

	k1, err := Key(payload{Prompt: "hi", Model: "gemini-pro"}, nil)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	k2, err := Key(map[string]any{"model": "gemini-pro", "prompt": "hi"}, nil)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	if k1 != k2 {
		t.Error("struct and equivalent map produced different keys")
	}
}
