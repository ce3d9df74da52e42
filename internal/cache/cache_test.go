package cache

import (
	"context"
	"testing"
	"time"

	"betledger/internal/models"
	"betledger/internal/repository"
)

// stubRepo implements only the cache entry methods; everything else panics
// through the embedded nil interface if touched.
type stubRepo struct {
	repository.Repository
	entries map[string]models.CacheEntry
}

func newStubRepo() *stubRepo {
	return &stubRepo{entries: map[string]models.CacheEntry{}}
}

func (r *stubRepo) GetCacheEntry(_ context.Context, key string) (*models.CacheEntry, error) {
	entry, ok := r.entries[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (r *stubRepo) UpsertCacheEntry(_ context.Context, item *models.CacheEntry) error {
	r.entries[item.Key] = *item
	return nil
}

func (r *stubRepo) DeleteCacheEntry(_ context.Context, key string) error {
	delete(r.entries, key)
	return nil
}

func (r *stubRepo) DeleteCacheEntriesBefore(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for key, entry := range r.entries {
		if entry.Timestamp.Before(before) {
			delete(r.entries, key)
			n++
		}
	}
	return n, nil
}

func (r *stubRepo) ClearCacheEntries(_ context.Context) (int64, error) {
	n := int64(len(r.entries))
	r.entries = map[string]models.CacheEntry{}
	return n, nil
}

func newTestStore(repo *stubRepo, now *time.Time) *Store {
	store := New(repo, nil)
	store.Now = func() time.Time { return *now }
	return store
}

func TestStore_SetGet(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(newStubRepo(), &now)
	ctx := context.Background()

	if err := store.Set(ctx, "k", map[string]int{"a": 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	raw, ok, err := store.Get(ctx, "k", DefaultTTL)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(raw) != `{"a":1}` {
		t.Fatalf("raw=%s", raw)
	}
}

func TestStore_Miss(t *testing.T) {
	now := time.Now()
	store := newTestStore(newStubRepo(), &now)
	_, ok, err := store.Get(context.Background(), "absent", DefaultTTL)
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}

func TestStore_ExpiryEvicts(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	repo := newStubRepo()
	store := newTestStore(repo, &now)
	ctx := context.Background()

	if err := store.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}

	// Just inside the TTL the value is still served.
	now = now.Add(DefaultTTL - time.Second)
	if _, ok, _ := store.Get(ctx, "k", DefaultTTL); !ok {
		t.Fatalf("expected hit inside ttl")
	}

	// Past the TTL the row is gone, including from the backing table.
	now = now.Add(2 * time.Second)
	if _, ok, _ := store.Get(ctx, "k", DefaultTTL); ok {
		t.Fatalf("expected miss past ttl")
	}
	if _, present := repo.entries["k"]; present {
		t.Fatalf("expired row not evicted")
	}
}

func TestStore_PerCallTTL(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(newStubRepo(), &now)
	ctx := context.Background()

	if err := store.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	now = now.Add(20 * time.Minute)

	// Stale under the default TTL but fresh under the settlement TTL.
	// Check the long TTL first: the short read deletes the row.
	if _, ok, _ := store.Get(ctx, "k", SettlementTTL); !ok {
		t.Fatalf("expected hit under long ttl")
	}
	if _, ok, _ := store.Get(ctx, "k", DefaultTTL); ok {
		t.Fatalf("expected miss under short ttl")
	}
}

func TestStore_SetResetsClock(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(newStubRepo(), &now)
	ctx := context.Background()

	if err := store.Set(ctx, "k", 1); err != nil {
		t.Fatalf("set: %v", err)
	}
	now = now.Add(10 * time.Minute)
	if err := store.Set(ctx, "k", 2); err != nil {
		t.Fatalf("set: %v", err)
	}
	now = now.Add(10 * time.Minute)

	raw, ok, _ := store.Get(ctx, "k", DefaultTTL)
	if !ok {
		t.Fatalf("expected hit after rewrite")
	}
	if string(raw) != "2" {
		t.Fatalf("raw=%s want 2", raw)
	}
}

func TestStore_DeleteAndClear(t *testing.T) {
	now := time.Now()
	store := newTestStore(newStubRepo(), &now)
	ctx := context.Background()

	_ = store.Set(ctx, "a", 1)
	_ = store.Set(ctx, "b", 2)
	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "a", DefaultTTL); ok {
		t.Fatalf("deleted key still served")
	}
	n, err := store.Clear(ctx)
	if err != nil || n != 1 {
		t.Fatalf("clear: n=%d err=%v", n, err)
	}
}

func TestKeysArePerUser(t *testing.T) {
	if FeedKey("a") == FeedKey("b") {
		t.Fatalf("feed keys collide")
	}
	if SettlementKey("u") == AccumulatorKey("u") {
		t.Fatalf("settlement and accumulator keys collide")
	}
}
