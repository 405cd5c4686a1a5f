// Package storage provides durable storage backends for tokstash.
//
// The badger backend keeps token records in an embedded LSM store so the
// active and expired partitions survive restarts.
//
// Layout:
//
//   - Key: "<partition name>/<token path>", e.g. "active/3f/2a/3f2a..."
//   - Value: one format byte followed by a protobuf-wire record
//     {1: path, 2: body, 3: expiration}
//   - Sealed values: the record bytes encrypted with an adaptive cipher,
//     bound to the key as additional data so values cannot be swapped
//     between keys or partitions
//
// The store runs value-log garbage collection in the background and can
// export its size and record counts as Prometheus gauges.
//
// See the redisstore subpackage for an external backend and the memory
// package for a non-durable one.
package storage
