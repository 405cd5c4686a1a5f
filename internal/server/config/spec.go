// Package config defines the server configuration structure.
package config

import (
	"time"

	"github.com/yndnr/tokstash-go/internal/core/domain"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// ServerConfig is the root configuration for tokstash-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Storage  StorageSection  `koanf:"storage"`
	Security SecuritySection `koanf:"security"`
	Log      LogSection      `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	// Hostname is reported in the X-HOSTNAME header and by /diagnostic.
	// Empty means os.Hostname().
	Hostname string `koanf:"hostname"`

	HTTP      HTTPConfig      `koanf:"http"`
	Redis     RedisConfig     `koanf:"redis"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`

	// ShutdownTimeout bounds graceful shutdown of all listeners.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr         string        `koanf:"addr"`
	TLSCertFile  string        `koanf:"tls_cert_file"`
	TLSKeyFile   string        `koanf:"tls_key_file"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`

	// MaxBodyBytes caps request bodies on /create and /update_expiration.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// TrustedProxies lists IPs and CIDRs allowed to report the client
	// address through X-Forwarded-For or X-Real-IP. Empty trusts nobody.
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// RedisConfig configures the Redis protocol server.
type RedisConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
}

// RateLimitConfig configures per-client-IP request limits shared by the
// HTTP and RESP transports.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

// StorageSection configures the record backend.
type StorageSection struct {
	// Backend is one of memory, badger, redis.
	Backend string `koanf:"backend"`

	// Partitions names the active and expired partitions.
	Partitions domain.PartitionNames `koanf:"partitions"`

	Memory MemoryConfig       `koanf:"memory"`
	Badger BadgerConfig       `koanf:"badger"`
	Redis  RedisBackendConfig `koanf:"redis"`
}

// MemoryConfig configures the in-process backend.
type MemoryConfig struct {
	ShardCount int `koanf:"shard_count"`
}

// BadgerConfig configures the embedded durable backend.
type BadgerConfig struct {
	DataDir     string        `koanf:"data_dir"`
	InMemory    bool          `koanf:"in_memory"`
	SyncWrites  bool          `koanf:"sync_writes"`
	GCInterval  time.Duration `koanf:"gc_interval"`
	GCThreshold float64       `koanf:"gc_threshold"`
	CacheSizeMB int64         `koanf:"cache_size_mb"`
}

// RedisBackendConfig configures the external Redis backend.
type RedisBackendConfig struct {
	Addr         string        `koanf:"addr"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	Prefix       string        `koanf:"prefix"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// SecuritySection configures security settings.
type SecuritySection struct {
	// EncryptionKey enables at-rest encryption in the badger backend.
	// Either 64 hex characters or a passphrase.
	EncryptionKey string `koanf:"encryption_key"`

	// KeySalt is the argon2id salt used when EncryptionKey is a passphrase.
	KeySalt string `koanf:"key_salt"`

	// Cipher selects the AEAD: "auto", "aes-gcm" or "chacha20-poly1305".
	Cipher string `koanf:"cipher"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
