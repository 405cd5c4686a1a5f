// Package token provides token generation and storage path derivation.
package token

import (
	"github.com/google/uuid"
)

// Length is the length of a generated token in characters.
const Length = 36

// Generate generates a new random token.
//
// The returned token is the canonical string form of a version 4 UUID.
func Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// IsWellFormed reports whether s parses as a token produced by Generate.
//
// Lookups never require this; tokens are opaque to the engine. It exists for
// clients that want to reject obvious typos before a round-trip.
func IsWellFormed(s string) bool {
	if len(s) != Length {
		return false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return id.Version() == 4
}
