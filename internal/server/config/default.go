// Package config defines the server configuration structure.
package config

import (
	"time"

	"github.com/yndnr/tokstash-go/internal/core/domain"
)

// Default configuration values.
const (
	DefaultHTTPAddr     = "127.0.0.1:5080"
	DefaultRedisAddr    = "127.0.0.1:6379"
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultIdleTimeout  = 2 * time.Minute
	DefaultMaxBodyBytes = 1 << 20

	DefaultRESPReadTimeout  = 30 * time.Second
	DefaultRESPWriteTimeout = 30 * time.Second
	DefaultRESPIdleTimeout  = 5 * time.Minute

	DefaultRateLimitRPS   = 1000
	DefaultRateLimitBurst = 2000

	DefaultShutdownTimeout = 15 * time.Second

	DefaultBackend          = BackendMemory
	DefaultDataDir          = "/var/lib/tokstash-server/data"
	DefaultGCInterval       = 10 * time.Minute
	DefaultGCThreshold      = 0.5
	DefaultCacheSizeMB      = 64
	DefaultRedisStoreAddr   = "127.0.0.1:6379"
	DefaultRedisStorePrefix = "tokstash:"

	DefaultCipher = "auto"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:         DefaultHTTPAddr,
				ReadTimeout:  DefaultReadTimeout,
				WriteTimeout: DefaultWriteTimeout,
				IdleTimeout:  DefaultIdleTimeout,
				MaxBodyBytes: DefaultMaxBodyBytes,
			},
			Redis: RedisConfig{
				Enabled:      false,
				Addr:         DefaultRedisAddr,
				ReadTimeout:  DefaultRESPReadTimeout,
				WriteTimeout: DefaultRESPWriteTimeout,
				IdleTimeout:  DefaultRESPIdleTimeout,
			},
			RateLimit: RateLimitConfig{
				Enabled: false,
				RPS:     DefaultRateLimitRPS,
				Burst:   DefaultRateLimitBurst,
			},
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Storage: StorageSection{
			Backend:    DefaultBackend,
			Partitions: domain.DefaultPartitionNames(),
			Badger: BadgerConfig{
				DataDir:     DefaultDataDir,
				GCInterval:  DefaultGCInterval,
				GCThreshold: DefaultGCThreshold,
				CacheSizeMB: DefaultCacheSizeMB,
			},
			Redis: RedisBackendConfig{
				Addr:         DefaultRedisStoreAddr,
				Prefix:       DefaultRedisStorePrefix,
				DialTimeout:  2 * time.Second,
				ReadTimeout:  time.Second,
				WriteTimeout: time.Second,
			},
		},
		Security: SecuritySection{
			Cipher: DefaultCipher,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
