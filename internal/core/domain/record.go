// Package domain defines the core domain models for tokstash.
package domain

import (
	"time"
)

// Partition identifies one of the two logical regions of the backend.
type Partition string

const (
	// PartitionActive holds records that have not been archived.
	PartitionActive Partition = "active"

	// PartitionExpired holds archived records. Records never leave it.
	PartitionExpired Partition = "expired"
)

// Valid reports whether p is a known partition.
func (p Partition) Valid() bool {
	return p == PartitionActive || p == PartitionExpired
}

// String implements fmt.Stringer.
func (p Partition) String() string {
	return string(p)
}

// Record is the unit stored by backends.
//
// A record lives at the same Path in either partition; archival copies it
// verbatim (expiration included) so repeated archival converges.
type Record struct {
	// Path is the storage path derived from the token.
	Path string `json:"path"`

	// Body is the serialized JSON object.
	Body []byte `json:"body"`

	// Expiration is the absolute expiry as unix seconds.
	Expiration int64 `json:"expiration"`
}

// ExpiresAt returns the expiration as a time.Time.
func (r *Record) ExpiresAt() time.Time {
	return time.Unix(r.Expiration, 0)
}

// IsExpiredAt reports whether the record is expired at now.
// A record whose expiration equals now is expired.
func (r *Record) IsExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt())
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	body := make([]byte, len(r.Body))
	copy(body, r.Body)
	return &Record{
		Path:       r.Path,
		Body:       body,
		Expiration: r.Expiration,
	}
}

// PartitionNames maps partitions onto backend namespaces.
type PartitionNames struct {
	Active  string `koanf:"active"`
	Expired string `koanf:"expired"`
}

// DefaultPartitionNames returns the names used when none are configured.
func DefaultPartitionNames() PartitionNames {
	return PartitionNames{
		Active:  string(PartitionActive),
		Expired: string(PartitionExpired),
	}
}

// Name returns the backend namespace of p.
func (n PartitionNames) Name(p Partition) (string, bool) {
	switch p {
	case PartitionActive:
		return n.Active, n.Active != ""
	case PartitionExpired:
		return n.Expired, n.Expired != ""
	default:
		return "", false
	}
}
