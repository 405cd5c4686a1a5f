// Package cmap provides a concurrent map keyed by strings.
//
// This package implements a sharded concurrent map used by the in-memory
// backend:
//
//   - Sharding: Configurable power-of-two shard count for parallelism
//   - Hashing: murmur3 with a per-map seed picks the shard for a key
//   - Fine-grained Locking: Per-shard RWMutex for minimal contention
//   - Iteration: Shard-by-shard iteration while holding read locks
//
// Usage:
//
//	m := cmap.New[domain.Record]()
//	m.Set("ab/cd/abcd...", rec)
//	val, ok := m.Get("ab/cd/abcd...")
//
// Thread Safety:
//
// All operations are thread-safe. Read operations (Get, Has) use RLock,
// write operations (Set, Delete, Pop) use Lock.
package cmap
