// Package service provides the token lifecycle engine for tokstash.
package service

import (
	"encoding/json"

	"github.com/yndnr/tokstash-go/internal/core/domain"
)

// Outcome is the result of looking a token up.
type Outcome int

const (
	// OutcomeValid means the token was found and has not expired.
	OutcomeValid Outcome = iota

	// OutcomeNotFound means no record exists in the queried partition.
	// Malformed tokens also report NotFound.
	OutcomeNotFound

	// OutcomeExpired means the record was found past its expiration and
	// has been archived.
	OutcomeExpired
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeValid:
		return "valid"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Err maps the outcome onto the matching domain error, or nil when valid.
func (o Outcome) Err() error {
	switch o {
	case OutcomeValid:
		return nil
	case OutcomeExpired:
		return domain.ErrTokenExpired
	default:
		return domain.ErrTokenNotFound
	}
}

// CreateResult contains the result of a create.
type CreateResult struct {
	Token      string // The issued token
	Expiration int64  // Absolute expiration (unix seconds)
}

// LookupResult contains the result of validate and expired-read lookups.
type LookupResult struct {
	Outcome Outcome

	// Body is the stored JSON object. Set only when Outcome is valid.
	Body json.RawMessage

	// Expiration of the record read. Zero when nothing was found.
	Expiration int64
}

// Valid reports whether the lookup found a usable record.
func (r *LookupResult) Valid() bool {
	return r.Outcome == OutcomeValid
}

// Err returns domain.ErrTokenNotFound or domain.ErrTokenExpired for
// callers that prefer errors over outcomes.
func (r *LookupResult) Err() error {
	return r.Outcome.Err()
}

// Payload decodes Body.
func (r *LookupResult) Payload() (domain.Payload, error) {
	return domain.DecodePayload(r.Body)
}

// ExpireResult contains the result of an expire.
type ExpireResult struct {
	// Archived is true when an active record was moved to the expired
	// partition by this call.
	Archived bool
}

// UpdateResult contains the result of an expiration extension.
type UpdateResult struct {
	Outcome    Outcome
	Token      string
	Expiration int64 // New absolute expiration; zero unless Outcome is valid
}

// Err returns the outcome as an error, or nil when the update applied.
func (r *UpdateResult) Err() error {
	return r.Outcome.Err()
}
