// Package memory provides the in-memory key-value store for minikv.
//
// Features:
//
//   - Sharded Storage: keys distributed across cmap shards for parallelism
//   - Active Expiry: one timer per key with a TTL removes it when due
//   - Lazy Expiry: reads never return a value past its expiry instant
//
// Thread Safety:
//
// All operations are thread-safe. No external locking is needed.
package memory
