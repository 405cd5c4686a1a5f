// Package domain defines the core domain models for tokstash.
package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Bookkeeping fields spliced into payloads by the engine.
const (
	FieldExpiration         = "expiration"
	FieldOriginalExpiration = "original_expiration"
	FieldExpirationSeconds  = "expiration_seconds"
)

// Payload is the caller-supplied JSON object stored behind a token.
type Payload map[string]any

// Clone returns a shallow copy of the payload.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Encode serializes the payload.
func (p Payload) Encode() ([]byte, error) {
	if p == nil {
		p = Payload{}
	}
	return json.Marshal(p)
}

// DecodePayload parses a stored body.
//
// Numbers are kept as json.Number so values round-trip without float
// truncation.
func DecodePayload(body []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, ErrInvalidPayload.WithCause(err)
	}
	if p == nil {
		return nil, ErrInvalidPayload.WithDetails("null body")
	}
	return p, nil
}

// WithExpiration returns a copy carrying the absolute expiration field.
func (p Payload) WithExpiration(expiration int64) Payload {
	out := p.Clone()
	out[FieldExpiration] = expiration
	return out
}

// WithExtension returns a copy carrying the update bookkeeping fields.
// Earlier bookkeeping is overwritten, not accumulated.
func (p Payload) WithExtension(previous, ttlSeconds, expiration int64) Payload {
	out := p.Clone()
	out[FieldOriginalExpiration] = strconv.FormatInt(previous, 10)
	out[FieldExpirationSeconds] = strconv.FormatInt(ttlSeconds, 10)
	out[FieldExpiration] = expiration
	return out
}
