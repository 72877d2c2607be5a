package cmap

import (
	"fmt"
	"sort"
	"sync"
	"testing"
)

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},  // invalid → default
		{-1, DefaultShardCount}, // invalid → default
		{3, DefaultShardCount},  // not power of 2 → default
		{1, 1},
		{8, 8},
		{64, 64},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[int](tt.input)
			if m.ShardCount() != tt.expected {
				t.Errorf("NewWithShards(%d) shard count = %d, want %d",
					tt.input, m.ShardCount(), tt.expected)
			}
		})
	}
}

func TestSetGetDelete(t *testing.T) {
	m := New[int]()

	if _, replaced := m.Set("key1", 100); replaced {
		t.Error("Set(key1) reported a previous value on first write")
	}
	if old, replaced := m.Set("key1", 200); !replaced || old != 100 {
		t.Errorf("Set(key1) = (%d, %v), want (100, true)", old, replaced)
	}

	val, ok := m.Get("key1")
	if !ok || val != 200 {
		t.Errorf("Get(key1) = (%d, %v), want (200, true)", val, ok)
	}
	if !m.Has("key1") || m.Has("missing") {
		t.Error("Has() mismatch")
	}

	if val, ok := m.Delete("key1"); !ok || val != 200 {
		t.Errorf("Delete(key1) = (%d, %v), want (200, true)", val, ok)
	}
	if _, ok := m.Delete("key1"); ok {
		t.Error("Delete(key1) twice reported success")
	}
}

func TestDeleteIf(t *testing.T) {
	m := New[int]()
	m.Set("k", 1)

	if m.DeleteIf("k", func(v int) bool { return v == 2 }) {
		t.Error("DeleteIf removed a value the predicate rejected")
	}
	if !m.DeleteIf("k", func(v int) bool { return v == 1 }) {
		t.Error("DeleteIf did not remove a matching value")
	}
	if m.DeleteIf("k", func(int) bool { return true }) {
		t.Error("DeleteIf reported success on a missing key")
	}
}

func TestCompute(t *testing.T) {
	m := New[int]()

	incr := func(old int, exists bool) (int, bool) { return old + 1, true }
	m.Compute("n", incr)
	m.Compute("n", incr)
	if v, _ := m.Get("n"); v != 2 {
		t.Errorf("Get(n) = %d, want 2", v)
	}

	m.Compute("n", func(int, bool) (int, bool) { return 0, false })
	if m.Has("n") {
		t.Error("Compute with keep=false left the key in place")
	}
}

func TestCountClearKeys(t *testing.T) {
	m := NewWithShards[int](4)
	for i := 0; i < 100; i++ {
		m.Set(fmt.Sprintf("key-%d", i), i)
	}
	if m.Count() != 100 {
		t.Errorf("Count() = %d, want 100", m.Count())
	}

	keys := m.Keys()
	sort.Strings(keys)
	if len(keys) != 100 || keys[0] != "key-0" {
		t.Errorf("Keys() = %d keys starting %q", len(keys), keys[0])
	}

	seen := 0
	m.Range(func(string, int) bool {
		seen++
		return seen < 10
	})
	if seen != 10 {
		t.Errorf("Range visited %d items after early stop, want 10", seen)
	}

	if removed := m.Clear(); len(removed) != 100 {
		t.Errorf("Clear() returned %d values, want 100", len(removed))
	}
	if m.Count() != 0 {
		t.Errorf("Count() after Clear = %d, want 0", m.Count())
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[int]()
	var wg sync.WaitGroup
	numGoroutines := 50
	numOps := 500

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				key := fmt.Sprintf("%d-%d", base, j)
				m.Set(key, j)
				m.Get(key)
				m.Compute(key, func(old int, _ bool) (int, bool) { return old * 2, true })
			}
		}(i)
	}
	wg.Wait()

	if m.Count() != numGoroutines*numOps {
		t.Errorf("Count() = %d, want %d", m.Count(), numGoroutines*numOps)
	}
}
