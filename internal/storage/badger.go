// Package storage provides durable storage backends for tokstash.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/tokstash-go/internal/core/domain"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("badger store closed")

// BadgerStore implements the partitioned record store on Badger v3.
type BadgerStore struct {
	db     *badger.DB
	cfg    BadgerConfig
	codec  valueCodec
	logger *slog.Logger
	closed atomic.Bool

	// Metrics (internal counters)
	lastGCTime atomic.Int64  // Unix milliseconds
	gcRuns     atomic.Uint64 // Value-log files rewritten

	// Prometheus metrics
	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsTotalSize    prometheus.Gauge
	metricsRecords      *prometheus.GaugeVec
	metricsLastGCTime   prometheus.Gauge
	metricsGCRuns       prometheus.Counter

	// Shutdown
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewBadgerStore opens (or creates) a badger store.
func NewBadgerStore(cfg BadgerConfig, logger *slog.Logger) (*BadgerStore, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if cfg.Partitions.Active == "" || cfg.Partitions.Expired == "" {
		cfg.Partitions = domain.DefaultPartitionNames()
	}
	if cfg.Partitions.Active == cfg.Partitions.Expired {
		return nil, fmt.Errorf("badger: partition names must differ")
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Build Badger options
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}
	if cfg.CacheSize > 0 {
		opts.BlockCacheSize = cfg.CacheSize
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.NumMemtables > 0 {
		opts.NumMemtables = cfg.NumMemtables
	}
	if cfg.NumLevelZeroTables > 0 {
		opts.NumLevelZeroTables = cfg.NumLevelZeroTables
	}
	if cfg.NumLevelZeroTablesStall > 0 {
		opts.NumLevelZeroTablesStall = cfg.NumLevelZeroTablesStall
	}
	opts.SyncWrites = cfg.SyncWrites
	// Writes are single-key overwrites; the engine tolerates races itself.
	opts.DetectConflicts = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	s := &BadgerStore{
		db:     db,
		cfg:    cfg,
		codec:  valueCodec{cipher: cfg.Cipher},
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	// Start background GC loop
	go s.gcLoop()

	logger.Info("badger store started",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"encrypted", cfg.Cipher != nil,
		"gc_interval", cfg.GCInterval)

	return s, nil
}

// key builds "<partition>/<path>".
func (s *BadgerStore) key(p domain.Partition, path string) ([]byte, error) {
	name, ok := s.cfg.Partitions.Name(p)
	if !ok {
		return nil, fmt.Errorf("badger: unknown partition %q", p)
	}
	k := make([]byte, 0, len(name)+1+len(path))
	k = append(k, name...)
	k = append(k, '/')
	k = append(k, path...)
	return k, nil
}

// Get retrieves the record at path.
func (s *BadgerStore) Get(_ context.Context, p domain.Partition, path string) (*domain.Record, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	key, err := s.key(p, path)
	if err != nil {
		return nil, err
	}

	var value []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrRecordNotFound
			}
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.codec.decode(key, value)
}

// Put stores rec, overwriting any previous value at its path.
func (s *BadgerStore) Put(_ context.Context, p domain.Partition, rec *domain.Record) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if rec == nil || rec.Path == "" {
		return fmt.Errorf("badger: record without path")
	}
	key, err := s.key(p, rec.Path)
	if err != nil {
		return err
	}

	value, err := s.codec.encode(key, rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete removes the record at path. Absent records are ignored.
func (s *BadgerStore) Delete(_ context.Context, p domain.Partition, path string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	key, err := s.key(p, path)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Count returns the number of records in a partition. It iterates keys
// only and is meant for metrics, not hot paths.
func (s *BadgerStore) Count(ctx context.Context, p domain.Partition) (uint64, error) {
	prefix, err := s.key(p, "")
	if err != nil {
		return 0, err
	}

	var n uint64
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if n%1024 == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			n++
		}
		return nil
	})
	return n, err
}

// GC runs value-log garbage collection until nothing more can be
// rewritten. Returns the number of files rewritten.
func (s *BadgerStore) GC(ctx context.Context) (uint64, error) {
	startTime := time.Now()

	var rewritten uint64
	for ctx.Err() == nil {
		err := s.db.RunValueLogGC(s.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
				break
			}
			return rewritten, fmt.Errorf("gc: %w", err)
		}
		rewritten++
	}

	s.lastGCTime.Store(time.Now().UnixMilli())
	s.gcRuns.Add(rewritten)
	if s.metricsGCRuns != nil {
		s.metricsGCRuns.Add(float64(rewritten))
	}

	s.logger.Debug("gc completed",
		"files_rewritten", rewritten,
		"elapsed", time.Since(startTime))

	return rewritten, nil
}

// Stats returns storage statistics.
func (s *BadgerStore) Stats(ctx context.Context) (*Stats, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	lsm, vlog := s.db.Size()

	active, err := s.Count(ctx, domain.PartitionActive)
	if err != nil {
		return nil, err
	}
	expired, err := s.Count(ctx, domain.PartitionExpired)
	if err != nil {
		return nil, err
	}

	return &Stats{
		ActiveRecords:  active,
		ExpiredRecords: expired,
		TotalSize:      uint64(lsm + vlog),
		LSMSize:        uint64(lsm),
		ValueLogSize:   uint64(vlog),
		LastGCTime:     s.lastGCTime.Load(),
		GCRuns:         s.gcRuns.Load(),
	}, nil
}

// Close gracefully shuts down the store.
func (s *BadgerStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Info("shutting down badger store")

	// Stop GC and metrics loops
	close(s.stopCh)
	<-s.doneCh

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	s.logger.Info("badger store shutdown complete")
	return nil
}

// RegisterMetrics registers badger metrics with Prometheus.
//
// This should be called once during initialization.
// Returns the store for method chaining.
func (s *BadgerStore) RegisterMetrics(registry prometheus.Registerer) *BadgerStore {
	s.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tokstash",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})

	s.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tokstash",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})

	s.metricsTotalSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tokstash",
		Subsystem: "badger",
		Name:      "total_size_bytes",
		Help:      "Badger total storage size in bytes (LSM + value log)",
	})

	s.metricsRecords = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tokstash",
		Subsystem: "badger",
		Name:      "records",
		Help:      "Number of stored records per partition",
	}, []string{"partition"})

	s.metricsLastGCTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tokstash",
		Subsystem: "badger",
		Name:      "last_gc_timestamp_seconds",
		Help:      "Unix timestamp of the last Badger GC run",
	})

	s.metricsGCRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tokstash",
		Subsystem: "badger",
		Name:      "gc_files_rewritten_total",
		Help:      "Total value log files rewritten by Badger garbage collection",
	})

	registry.MustRegister(
		s.metricsLSMSize,
		s.metricsValueLogSize,
		s.metricsTotalSize,
		s.metricsRecords,
		s.metricsLastGCTime,
		s.metricsGCRuns,
	)

	return s
}

// updateMetrics refreshes the gauges from Stats.
func (s *BadgerStore) updateMetrics() {
	if s.metricsLSMSize == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	stats, err := s.Stats(ctx)
	cancel()
	if err != nil {
		// Store might be closing
		return
	}

	s.metricsLSMSize.Set(float64(stats.LSMSize))
	s.metricsValueLogSize.Set(float64(stats.ValueLogSize))
	s.metricsTotalSize.Set(float64(stats.TotalSize))
	s.metricsRecords.WithLabelValues(string(domain.PartitionActive)).Set(float64(stats.ActiveRecords))
	s.metricsRecords.WithLabelValues(string(domain.PartitionExpired)).Set(float64(stats.ExpiredRecords))
	if stats.LastGCTime > 0 {
		s.metricsLastGCTime.Set(float64(stats.LastGCTime) / 1000.0) // Convert ms to seconds
	}
}

// gcLoop runs periodic garbage collection and metric refreshes.
func (s *BadgerStore) gcLoop() {
	defer close(s.doneCh)

	interval, err := time.ParseDuration(s.cfg.GCInterval)
	if err != nil || interval <= 0 {
		s.logger.Warn("invalid gc_interval, using default 10m", "value", s.cfg.GCInterval)
		interval = 10 * time.Minute
	}

	gcTicker := time.NewTicker(interval)
	defer gcTicker.Stop()
	metricsTicker := time.NewTicker(15 * time.Second)
	defer metricsTicker.Stop()

	for {
		select {
		case <-gcTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := s.GC(ctx); err != nil {
				s.logger.Error("auto gc failed", "error", err)
			}
			cancel()

		case <-metricsTicker.C:
			s.updateMetrics()

		case <-s.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
