// Package token provides token generation and storage path derivation.
package token

import (
	"crypto/sha256"
	"encoding/hex"
)

// FingerprintLength is the number of hex characters kept by Fingerprint.
const FingerprintLength = 12

// Hash computes the SHA-256 hash of a token.
//
// The returned hash is hex encoded.
func Hash(tok string) string {
	h := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(h[:])
}

// Fingerprint returns a short, stable, non-reversible identifier for a token.
//
// Logs carry fingerprints instead of tokens: anyone holding a token can read
// its payload, so tokens must never reach log sinks.
func Fingerprint(tok string) string {
	return "fp_" + Hash(tok)[:FingerprintLength]
}
