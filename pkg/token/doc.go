// Package token provides token generation and storage path derivation.
//
// Token Format:
//
//   - Canonical UUIDv4 string (36 characters, lowercase hex with hyphens)
//   - 122 random bits from crypto/rand
//
// Storage Path Format:
//
//   - Two shard segments taken from the first four characters
//   - Followed by the full token
//   - Example: 3f2a9c1e-... -> 3f/2a/3f2a9c1e-...
//
// The path is a pure function of the token, so the same token always
// lands on the same backend key regardless of which process computes it.
package token
