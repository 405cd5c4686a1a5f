// Package storage provides durable storage backends for tokstash.
package storage

import (
	"github.com/yndnr/tokstash-go/internal/core/domain"
	"github.com/yndnr/tokstash-go/pkg/crypto/adaptive"
)

// BadgerConfig configures the badger backend.
type BadgerConfig struct {
	// Dir is the storage directory.
	Dir string

	// InMemory runs badger without touching disk. Dir is ignored.
	InMemory bool

	// Partitions names the key prefixes of the two partitions.
	// Default: active / expired
	Partitions domain.PartitionNames

	// Cipher seals stored values when set.
	Cipher adaptive.Cipher

	// GCInterval is the interval between automatic GC runs.
	// Default: 10m
	GCInterval string

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Higher values trigger GC more aggressively.
	// Default: 0.5 (run GC when 50% of data is stale)
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 64MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 256MB
	ValueLogFileSize int64

	// NumMemtables is the number of memtables.
	// Default: 2
	NumMemtables int

	// NumLevelZeroTables is the number of Level 0 tables before compaction.
	// Default: 5
	NumLevelZeroTables int

	// NumLevelZeroTablesStall is the number of Level 0 tables that triggers write stall.
	// Default: 10
	NumLevelZeroTablesStall int

	// SyncWrites enables sync writes (fsync after each write).
	// Default: false
	SyncWrites bool
}

// DefaultBadgerConfig returns the default badger configuration.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:                     dir,
		Partitions:              domain.DefaultPartitionNames(),
		GCInterval:              "10m",
		GCThreshold:             0.5,
		CacheSize:               64 << 20,  // 64MB
		ValueLogFileSize:        256 << 20, // 256MB
		NumMemtables:            2,
		NumLevelZeroTables:      5,
		NumLevelZeroTablesStall: 10,
		SyncWrites:              false,
	}
}

// Stats contains storage statistics.
type Stats struct {
	// ActiveRecords is the number of records in the active partition.
	ActiveRecords uint64

	// ExpiredRecords is the number of records in the expired partition.
	ExpiredRecords uint64

	// TotalSize is the total disk usage in bytes.
	TotalSize uint64

	// LSMSize is the LSM tree size.
	LSMSize uint64

	// ValueLogSize is the value log size.
	ValueLogSize uint64

	// LastGCTime is the last GC run timestamp (Unix milliseconds).
	LastGCTime int64

	// GCRuns is the number of value-log files rewritten by GC.
	GCRuns uint64
}
