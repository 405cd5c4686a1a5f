// Package memory provides in-memory storage for tokstash.
package memory

import (
	"context"
	"fmt"

	"github.com/yndnr/tokstash-go/internal/core/domain"
	"github.com/yndnr/tokstash-go/pkg/cmap"
)

// Store provides in-memory record storage split into two partitions.
type Store struct {
	active  *cmap.Map[domain.Record]
	expired *cmap.Map[domain.Record]
}

// Option configures the Store.
type Option func(*options)

type options struct {
	shards int
}

// WithShardCount sets the shard count of each partition map.
func WithShardCount(n int) Option {
	return func(o *options) {
		o.shards = n
	}
}

// New creates a new in-memory store.
func New(opts ...Option) *Store {
	o := options{shards: cmap.DefaultShardCount}
	for _, opt := range opts {
		opt(&o)
	}

	return &Store{
		active:  cmap.NewWithShards[domain.Record](o.shards),
		expired: cmap.NewWithShards[domain.Record](o.shards),
	}
}

func (s *Store) partition(p domain.Partition) (*cmap.Map[domain.Record], error) {
	switch p {
	case domain.PartitionActive:
		return s.active, nil
	case domain.PartitionExpired:
		return s.expired, nil
	default:
		return nil, fmt.Errorf("memory: unknown partition %q", p)
	}
}

// Get retrieves the record at path.
func (s *Store) Get(_ context.Context, p domain.Partition, path string) (*domain.Record, error) {
	m, err := s.partition(p)
	if err != nil {
		return nil, err
	}

	rec, ok := m.Get(path)
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	// Return a clone to prevent external modification
	return rec.Clone(), nil
}

// Put stores rec, overwriting any previous value at its path.
func (s *Store) Put(_ context.Context, p domain.Partition, rec *domain.Record) error {
	m, err := s.partition(p)
	if err != nil {
		return err
	}
	if rec == nil || rec.Path == "" {
		return fmt.Errorf("memory: record without path")
	}

	m.Set(rec.Path, *rec.Clone())
	return nil
}

// Delete removes the record at path. Absent records are ignored.
func (s *Store) Delete(_ context.Context, p domain.Partition, path string) error {
	m, err := s.partition(p)
	if err != nil {
		return err
	}

	m.Delete(path)
	return nil
}

// Count returns the number of records in a partition.
func (s *Store) Count(p domain.Partition) int {
	m, err := s.partition(p)
	if err != nil {
		return 0
	}
	return m.Count()
}

// Close releases nothing; it exists so the store can be used wherever a
// closable backend is expected.
func (s *Store) Close() error {
	return nil
}
