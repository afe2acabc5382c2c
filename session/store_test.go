package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb, "af", "test", time.Hour)
	return store, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession on empty store, got %v", err)
	}

	first := *testSession()
	if err := store.Replace(ctx, first); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Token != first.Token {
		t.Fatalf("expected token %q, got %q", first.Token, got.Token)
	}

	second := first
	second.Token = "tok-second"
	second.Identity.Role = RoleAdmin
	if err := store.Replace(ctx, second); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	got, _ = store.Load(ctx)
	if got.Token != "tok-second" || got.Identity.Role != RoleAdmin {
		t.Fatalf("expected wholesale replacement, got %+v", got)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second Clear failed: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after clear, got %v", err)
	}
}

func TestMemoryStoreRejectsEmptyToken(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Replace(context.Background(), Session{}); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestMemoryStoreNoTornReads(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a := Session{Token: "A", Identity: Identity{ID: "A", Role: RoleAdmin}}
	b := Session{Token: "B", Identity: Identity{ID: "B", Role: RoleUser}}
	if err := store.Replace(ctx, a); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				_ = store.Replace(ctx, a)
			} else {
				_ = store.Replace(ctx, b)
			}
		}
	}()

	for i := 0; i < 10000; i++ {
		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got.Token != got.Identity.ID {
			close(stop)
			wg.Wait()
			t.Fatalf("torn read: %+v", got)
		}
	}
	close(stop)
	wg.Wait()
}

func TestRedisStoreReplaceLoadClear(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()

	if _, err := store.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	s := *testSession()
	if err := store.Replace(ctx, s); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if !mr.Exists("af:session:test") {
		t.Fatal("expected session key to exist")
	}
	ttl := mr.TTL("af:session:test")
	if ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected ttl bounded by session lifetime, got %v", ttl)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Token != s.Token || got.Identity != s.Identity {
		t.Fatalf("unexpected session %+v", got)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after clear, got %v", err)
	}
}

func TestRedisStoreKeyExpiresWithSession(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()

	s := *testSession()
	s.ExpiresAt = time.Now().Add(30 * time.Second)
	if err := store.Replace(ctx, s); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	mr.FastForward(31 * time.Second)

	if _, err := store.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after ttl, got %v", err)
	}
}

func TestRedisStoreDropsSessionExpiredByClock(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Replace(ctx, *testSession()); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, err := store.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if mr.Exists("af:session:test") {
		t.Fatal("expected expired key to be deleted")
	}
}

func TestRedisStoreDefaultTTLWithoutExpiry(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()

	s := *testSession()
	s.ExpiresAt = time.Time{}
	if err := store.Replace(context.Background(), s); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if ttl := mr.TTL("af:session:test"); ttl != time.Hour {
		t.Fatalf("expected default ttl, got %v", ttl)
	}
}

func TestRedisStoreRejectsExpiredSession(t *testing.T) {
	store, _, done := newRedisStoreTest(t)
	defer done()

	s := *testSession()
	s.ExpiresAt = time.Now().Add(-time.Second)
	if err := store.Replace(context.Background(), s); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestRedisStoreCorruptBlob(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()

	if err := mr.Set("af:session:test", "garbage"); err != nil {
		t.Fatalf("seed corrupt blob: %v", err)
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("expected ErrSessionCorrupt, got %v", err)
	}
	if mr.Exists("af:session:test") {
		t.Fatal("expected corrupt key to be deleted")
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := store.Load(ctx); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
