// Package token provides token generation and storage path derivation.
package token

import (
	"errors"
	"strings"
)

// ShardPrefixLength is the number of leading token characters used for sharding.
const ShardPrefixLength = 4

// ErrTooShort is returned when a token cannot be split into shard segments.
var ErrTooShort = errors.New("token: shorter than shard prefix")

// Path derives the storage path for a token.
//
// The first four characters become two two-character segments:
// "ab12cd..." -> "ab/12/ab12cd...".
func Path(tok string) (string, error) {
	if len(tok) < ShardPrefixLength {
		return "", ErrTooShort
	}

	var b strings.Builder
	b.Grow(len(tok) + 6)
	b.WriteString(tok[:2])
	b.WriteByte('/')
	b.WriteString(tok[2:4])
	b.WriteByte('/')
	b.WriteString(tok)
	return b.String(), nil
}

// MustPath is like Path but panics on malformed tokens. For tests and constants.
func MustPath(tok string) string {
	p, err := Path(tok)
	if err != nil {
		panic(err)
	}
	return p
}
