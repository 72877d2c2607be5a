package memory

import (
	"sync/atomic"
	"time"

	"github.com/yndnr/minikv/internal/core/domain"
	"github.com/yndnr/minikv/pkg/cmap"
)

// item is one stored value. Fields are immutable once the item is
// published in the map.
type item struct {
	value    []byte
	expireAt int64 // unix ms, 0 for none
	gen      uint64
	timer    *time.Timer
}

func (it *item) expiredAt(nowMs int64) bool {
	return it.expireAt > 0 && it.expireAt <= nowMs
}

// Store is a concurrent key-value store with per-key expiry.
//
// Every write gets a new generation number. An expiry timer only removes
// the item of its own generation, so a timer that fires concurrently with
// an overwrite never deletes the newer value.
type Store struct {
	items    *cmap.Map[*item]
	gen      atomic.Uint64
	closed   atomic.Bool
	onExpire func(key string)
	now      func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithShardCount sets the number of map shards (a power of 2).
func WithShardCount(n int) Option {
	return func(s *Store) {
		s.items = cmap.NewWithShards[*item](n)
	}
}

// WithExpireHook registers fn to be called after a key is removed by its
// expiry timer.
func WithExpireHook(fn func(key string)) Option {
	return func(s *Store) {
		s.onExpire = fn
	}
}

// New creates a new in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		items: cmap.New[*item](),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores value under key with no expiry. Any previous expiry of the
// key is cleared.
func (s *Store) Put(key string, value []byte) {
	s.put(key, value, 0)
}

// PutWithTTL stores value under key, expiring after ttl.
// A non-positive ttl expires the key immediately.
func (s *Store) PutWithTTL(key string, value []byte, ttl time.Duration) {
	s.put(key, value, s.now().Add(ttl).UnixMilli())
}

// PutAt stores value under key, expiring at the given unix milliseconds.
// Zero means no expiry.
func (s *Store) PutAt(key string, value []byte, expireAtMs int64) {
	s.put(key, value, expireAtMs)
}

// Load stores every entry, skipping those already expired. It returns the
// number of entries stored.
func (s *Store) Load(entries []domain.Entry) int {
	now := s.now()
	n := 0
	for _, e := range entries {
		if e.ExpiredAt(now) {
			continue
		}
		s.put(e.Key, e.Value, e.ExpireAt)
		n++
	}
	return n
}

// Replace drops every key and then loads entries as Load does.
func (s *Store) Replace(entries []domain.Entry) int {
	for _, it := range s.items.Clear() {
		if it.timer != nil {
			it.timer.Stop()
		}
	}
	return s.Load(entries)
}

func (s *Store) put(key string, value []byte, expireAt int64) {
	it := &item{
		value:    value,
		expireAt: expireAt,
		gen:      s.gen.Add(1),
	}

	s.items.Compute(key, func(old *item, exists bool) (*item, bool) {
		if exists && old.timer != nil {
			old.timer.Stop()
		}
		if expireAt > 0 && !s.closed.Load() {
			d := time.UnixMilli(expireAt).Sub(s.now())
			gen := it.gen
			it.timer = time.AfterFunc(d, func() { s.expire(key, gen) })
		}
		return it, true
	})
}

// expire runs on the timer goroutine.
func (s *Store) expire(key string, gen uint64) {
	removed := s.items.DeleteIf(key, func(it *item) bool {
		return it.gen == gen
	})
	if removed && s.onExpire != nil {
		s.onExpire(key)
	}
}

// Get returns the value for key. Expired keys are absent.
func (s *Store) Get(key string) ([]byte, bool) {
	it, ok := s.items.Get(key)
	if !ok {
		return nil, false
	}
	if it.expiredAt(s.now().UnixMilli()) {
		// The timer has not fired yet; remove on its behalf.
		s.removeGen(key, it.gen)
		return nil, false
	}
	return it.value, true
}

// Exists reports whether key holds an unexpired value.
func (s *Store) Exists(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Delete removes key and reports whether an unexpired value was removed.
func (s *Store) Delete(key string) bool {
	it, ok := s.items.Delete(key)
	if !ok {
		return false
	}
	if it.timer != nil {
		it.timer.Stop()
	}
	return !it.expiredAt(s.now().UnixMilli())
}

func (s *Store) removeGen(key string, gen uint64) {
	s.items.DeleteIf(key, func(it *item) bool {
		if it.gen != gen {
			return false
		}
		if it.timer != nil {
			it.timer.Stop()
		}
		return true
	})
}

// Keys returns all unexpired keys in no particular order.
func (s *Store) Keys() []string {
	nowMs := s.now().UnixMilli()
	keys := make([]string, 0, s.items.Count())
	s.items.Range(func(key string, it *item) bool {
		if !it.expiredAt(nowMs) {
			keys = append(keys, key)
		}
		return true
	})
	return keys
}

// Len returns the number of stored keys, including expired keys whose
// timer has not fired yet.
func (s *Store) Len() int {
	return s.items.Count()
}

// Snapshot returns a point-in-time copy of all unexpired entries.
func (s *Store) Snapshot() []domain.Entry {
	nowMs := s.now().UnixMilli()
	out := make([]domain.Entry, 0, s.items.Count())
	s.items.Range(func(key string, it *item) bool {
		if !it.expiredAt(nowMs) {
			out = append(out, domain.Entry{Key: key, Value: it.value, ExpireAt: it.expireAt})
		}
		return true
	})
	return out
}

// Close stops all expiry timers and drops every key.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, it := range s.items.Clear() {
		if it.timer != nil {
			it.timer.Stop()
		}
	}
	return nil
}
