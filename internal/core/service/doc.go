// Package service provides the token lifecycle engine for tokstash.
//
// The engine contains the business logic of the store and orchestrates
// operations on domain records. It defines the Store interface for its
// storage dependency, allowing backends to be swapped and faked in tests.
//
// This package contains:
//
//   - Engine: create, validate, expire, update and expired-archive lookups
//   - Store: the partitioned key-value contract every backend implements
//   - Recorder: metric hooks invoked on each lifecycle transition
//
// The engine holds no locks and no per-token state. Concurrent archival of
// the same token is tolerated because archival is an unconditional copy
// followed by an unconditional delete, so racing callers converge on the
// same final state.
package service
