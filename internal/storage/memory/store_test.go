package memory

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/minikv/internal/core/domain"
)

func TestStore_PutGet(t *testing.T) {
	store := New()
	defer store.Close()

	store.Put("foo", []byte("bar"))

	got, ok := store.Get("foo")
	if !ok || string(got) != "bar" {
		t.Fatalf("Get(foo) = (%q, %v), want (bar, true)", got, ok)
	}
	if _, ok := store.Get("missing"); ok {
		t.Error("Get(missing) reported a value")
	}
	if !store.Exists("foo") {
		t.Error("Exists(foo) = false, want true")
	}
}

func TestStore_Delete(t *testing.T) {
	store := New()
	defer store.Close()

	store.PutWithTTL("k", []byte("v"), time.Hour)
	if !store.Delete("k") {
		t.Error("Delete(k) = false, want true")
	}
	if store.Delete("k") {
		t.Error("Delete(k) twice = true, want false")
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
}

func TestStore_TTLExpires(t *testing.T) {
	var expired atomic.Int32
	store := New(WithExpireHook(func(string) { expired.Add(1) }))
	defer store.Close()

	store.PutWithTTL("foo", []byte("bar"), 50*time.Millisecond)

	if _, ok := store.Get("foo"); !ok {
		t.Fatal("Get(foo) before TTL reported absent")
	}

	time.Sleep(120 * time.Millisecond)

	if _, ok := store.Get("foo"); ok {
		t.Error("Get(foo) after TTL still returned a value")
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after timer fired", store.Len())
	}
	if expired.Load() != 1 {
		t.Errorf("expire hook called %d times, want 1", expired.Load())
	}
}

func TestStore_OverwriteClearsTTL(t *testing.T) {
	store := New()
	defer store.Close()

	store.PutWithTTL("foo", []byte("old"), 50*time.Millisecond)
	store.Put("foo", []byte("new"))

	time.Sleep(120 * time.Millisecond)

	got, ok := store.Get("foo")
	if !ok || string(got) != "new" {
		t.Errorf("Get(foo) = (%q, %v), want (new, true)", got, ok)
	}
}

func TestStore_OverwriteReplacesTTL(t *testing.T) {
	store := New()
	defer store.Close()

	store.PutWithTTL("foo", []byte("a"), time.Hour)
	store.PutWithTTL("foo", []byte("b"), 50*time.Millisecond)

	time.Sleep(120 * time.Millisecond)

	if _, ok := store.Get("foo"); ok {
		t.Error("Get(foo) returned a value after the replacing TTL elapsed")
	}
}

func TestStore_LazyExpiry(t *testing.T) {
	store := New()
	defer store.Close()

	now := time.Now()
	store.now = func() time.Time { return now }
	store.PutAt("k", []byte("v"), now.Add(time.Hour).UnixMilli())

	// Advance the clock past expiry without letting the timer fire.
	store.now = func() time.Time { return now.Add(2 * time.Hour) }

	if _, ok := store.Get("k"); ok {
		t.Error("Get(k) returned a value past its expiry instant")
	}
	if len(store.Keys()) != 0 {
		t.Errorf("Keys() = %v, want empty", store.Keys())
	}
}

func TestStore_Load(t *testing.T) {
	store := New()
	defer store.Close()

	now := time.Now()
	entries := []domain.Entry{
		{Key: "plain", Value: []byte("1")},
		{Key: "future", Value: []byte("2"), ExpireAt: now.Add(time.Hour).UnixMilli()},
		{Key: "past", Value: []byte("3"), ExpireAt: now.Add(-time.Hour).UnixMilli()},
	}

	if n := store.Load(entries); n != 2 {
		t.Errorf("Load() = %d, want 2", n)
	}

	keys := store.Keys()
	sort.Strings(keys)
	if fmt.Sprint(keys) != "[future plain]" {
		t.Errorf("Keys() = %v, want [future plain]", keys)
	}

	snap := store.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("len(Snapshot()) = %d, want 2", len(snap))
	}
	for _, e := range snap {
		if e.Key == "future" && e.ExpireAt != entries[1].ExpireAt {
			t.Errorf("Snapshot ExpireAt = %d, want %d", e.ExpireAt, entries[1].ExpireAt)
		}
	}
}

func TestStore_Replace(t *testing.T) {
	store := New()
	defer store.Close()

	store.Put("stale", []byte("x"))
	store.PutWithTTL("ttl", []byte("y"), time.Hour)

	n := store.Replace([]domain.Entry{{Key: "fresh", Value: []byte("1")}})
	if n != 1 {
		t.Errorf("Replace() = %d, want 1", n)
	}
	if keys := store.Keys(); len(keys) != 1 || keys[0] != "fresh" {
		t.Errorf("Keys() after Replace = %v, want [fresh]", keys)
	}
}

func TestStore_ConcurrentOverwrites(t *testing.T) {
	store := New()
	defer store.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", j%10)
				if j%2 == 0 {
					store.PutWithTTL(key, []byte("ttl"), time.Millisecond)
				} else {
					store.Put(key, []byte("keep"))
				}
				store.Get(key)
			}
		}(i)
	}
	wg.Wait()

	// Make every key persistent, then let any stale timers fire.
	for j := 0; j < 10; j++ {
		store.Put(fmt.Sprintf("k%d", j), []byte("final"))
	}
	time.Sleep(20 * time.Millisecond)

	for j := 0; j < 10; j++ {
		key := fmt.Sprintf("k%d", j)
		if got, ok := store.Get(key); !ok || string(got) != "final" {
			t.Errorf("Get(%s) = (%q, %v), want (final, true)", key, got, ok)
		}
	}
}

func TestStore_Close(t *testing.T) {
	store := New()
	store.PutWithTTL("k", []byte("v"), time.Hour)

	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len() after Close = %d, want 0", store.Len())
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
