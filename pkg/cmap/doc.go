// Package cmap provides a concurrent map keyed by strings.
//
// Keys are spread over a power-of-two number of shards by their murmur3
// hash; each shard is guarded by its own RWMutex. Read operations (Get,
// Has) take the read lock, write operations (Set, Delete, Compute) take
// the write lock.
//
// Usage:
//
//	m := cmap.New[*entry]()
//	m.Set("key", e)
//	val, ok := m.Get("key")
package cmap
