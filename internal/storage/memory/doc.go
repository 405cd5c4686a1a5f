// Package memory provides in-memory storage for tokstash.
//
// It implements the partitioned record store using concurrent-safe
// data structures with sharded locking for high performance.
//
// Features:
//
//   - Sharded Storage: Records distributed across shards for parallelism
//   - Partitions: Independent maps for active and expired records
//   - Isolation: Bodies are copied on write and on read
//
// Thread Safety:
//
// All operations are thread-safe through fine-grained locking.
// Read operations use RLock, write operations use Lock.
//
// Contents are lost when the process exits; use the badger or redis
// backends for durability.
package memory
