// Package redisstore provides a Redis-backed record store for tokstash.
//
// Each record is a hash at "<prefix><partition>:<path>" with the fields
// "body" and "expiration". Both fields are written on every Put, so a Put
// is a full overwrite. Redis key expiry is not used: archived records must
// stay readable indefinitely and active records are archived by the engine,
// not dropped by the server.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yndnr/tokstash-go/internal/core/domain"
)

// Hash field names.
const (
	fieldBody       = "body"
	fieldExpiration = "expiration"
)

// Config configures the Redis backend.
type Config struct {
	Addr     string
	Password string
	DB       int

	// Prefix is prepended to every key, e.g. "tokstash:".
	Prefix string

	// Partitions names the key namespaces of the two partitions.
	Partitions domain.PartitionNames

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the default Redis backend configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:6379",
		Prefix:       "tokstash:",
		Partitions:   domain.DefaultPartitionNames(),
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

// Store implements the partitioned record store on Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
	names  domain.PartitionNames
	logger *slog.Logger
}

// Open connects to Redis and verifies the connection with PING.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redisstore: addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout+time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redisstore: ping %s: %w", cfg.Addr, err)
	}

	s := NewWithClient(client, cfg.Prefix, cfg.Partitions, logger)
	s.logger.Info("redis store connected", "addr", cfg.Addr, "db", cfg.DB, "prefix", cfg.Prefix)
	return s, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, prefix string, names domain.PartitionNames, logger *slog.Logger) *Store {
	if names.Active == "" || names.Expired == "" {
		names = domain.DefaultPartitionNames()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		prefix: prefix,
		names:  names,
		logger: logger.With("component", "redisstore"),
	}
}

// Key returns the Redis key of path in partition p.
func (s *Store) Key(p domain.Partition, path string) (string, error) {
	name, ok := s.names.Name(p)
	if !ok {
		return "", fmt.Errorf("redisstore: unknown partition %q", p)
	}
	return s.prefix + name + ":" + path, nil
}

// Get retrieves the record at path.
func (s *Store) Get(ctx context.Context, p domain.Partition, path string) (*domain.Record, error) {
	key, err := s.Key(p, path)
	if err != nil {
		return nil, err
	}

	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrRecordNotFound
	}

	return decodeFields(path, fields)
}

// Put stores rec, overwriting any previous value at its path.
func (s *Store) Put(ctx context.Context, p domain.Partition, rec *domain.Record) error {
	if rec == nil || rec.Path == "" {
		return errors.New("redisstore: record without path")
	}
	key, err := s.Key(p, rec.Path)
	if err != nil {
		return err
	}

	err = s.client.HSet(ctx, key,
		fieldBody, rec.Body,
		fieldExpiration, strconv.FormatInt(rec.Expiration, 10),
	).Err()
	if err != nil {
		return fmt.Errorf("redisstore: hset: %w", err)
	}
	return nil
}

// Delete removes the record at path. Absent records are ignored.
func (s *Store) Delete(ctx context.Context, p domain.Partition, path string) error {
	key, err := s.Key(p, path)
	if err != nil {
		return err
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redisstore: del: %w", err)
	}
	return nil
}

// Ping checks connectivity. Used by the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func decodeFields(path string, fields map[string]string) (*domain.Record, error) {
	body, ok := fields[fieldBody]
	if !ok {
		return nil, domain.ErrRecordCorrupted.WithDetails("missing body field")
	}
	exp, err := strconv.ParseInt(fields[fieldExpiration], 10, 64)
	if err != nil {
		return nil, domain.ErrRecordCorrupted.WithCause(err)
	}

	return &domain.Record{
		Path:       path,
		Body:       []byte(body),
		Expiration: exp,
	}, nil
}
