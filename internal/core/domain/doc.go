// Package domain defines the core domain models for tokstash.
//
// Domain models are pure values without any IO dependencies or framework
// coupling. This package contains:
//
//   - Record: a token's stored body and absolute expiration
//   - Partition: the logical active/expired split of the backend
//   - Payload: the caller's JSON object and its bookkeeping fields
//   - Errors: Domain-specific error definitions
package domain
