// Package service provides the token lifecycle engine for tokstash.
package service

import (
	"context"

	"github.com/yndnr/tokstash-go/internal/core/domain"
)

// Store defines the storage interface for token records.
//
// Implementations must be safe for concurrent use. No conditional writes
// or transactions are required.
type Store interface {
	// Get retrieves the record stored at path in the given partition.
	// It returns domain.ErrRecordNotFound when no record exists.
	Get(ctx context.Context, partition domain.Partition, path string) (*domain.Record, error)

	// Put stores rec in the given partition, overwriting any previous value.
	Put(ctx context.Context, partition domain.Partition, rec *domain.Record) error

	// Delete removes the record at path. Deleting an absent record is not
	// an error.
	Delete(ctx context.Context, partition domain.Partition, path string) error
}

// Recorder receives lifecycle events for metrics.
type Recorder interface {
	// TokenCreated is called after a successful create.
	TokenCreated()

	// Lookup is called once per validate, update, expire or expired-read
	// with the outcome observed.
	Lookup(op string, outcome Outcome)

	// Archived is called after a record was copied to the expired
	// partition. trigger names the operation that caused it.
	Archived(trigger string)

	// Updated is called after a successful expiration extension.
	Updated()
}

// Operation names passed to Recorder.Lookup and Recorder.Archived.
const (
	OpValidate    = "validate"
	OpExpire      = "expire"
	OpUpdate      = "update"
	OpReadExpired = "read_expired"
)

type nopRecorder struct{}

func (nopRecorder) TokenCreated()          {}
func (nopRecorder) Lookup(string, Outcome) {}
func (nopRecorder) Archived(string)        {}
func (nopRecorder) Updated()               {}
