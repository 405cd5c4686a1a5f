// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strings"

	"github.com/yndnr/tokstash-go/internal/telemetry/logger"
	"github.com/yndnr/tokstash-go/pkg/crypto/adaptive"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifySecurity(&cfg.Security, cfg.Storage.Backend); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if err := verifyAddr("server.http.addr", cfg.HTTP.Addr); err != nil {
		return err
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("server.http tls file: %w", err)
		}
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		return errors.New("server.http.max_body_bytes must be positive")
	}
	for _, p := range cfg.HTTP.TrustedProxies {
		if err := verifyProxy(strings.TrimSpace(p)); err != nil {
			return fmt.Errorf("server.http.trusted_proxies: %w", err)
		}
	}

	if cfg.Redis.Enabled {
		if err := verifyAddr("server.redis.addr", cfg.Redis.Addr); err != nil {
			return err
		}
		if cfg.Redis.Addr == cfg.HTTP.Addr {
			return fmt.Errorf("server.redis.addr conflicts with server.http.addr (%s)", cfg.HTTP.Addr)
		}
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RPS <= 0 {
			return errors.New("server.rate_limit.rps must be positive")
		}
		if cfg.RateLimit.Burst < 1 {
			return errors.New("server.rate_limit.burst must be at least 1")
		}
	}
	return nil
}

func verifyAddr(key, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", key)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	p := cfg.Partitions
	if p.Active == "" || p.Expired == "" {
		return errors.New("storage.partitions.active and expired are required")
	}
	if p.Active == p.Expired {
		return errors.New("storage.partitions.active and expired must differ")
	}
	// Keys are <partition>/<path>; a slash in a name would let one
	// partition's key range overlap the other's.
	if strings.Contains(p.Active, "/") || strings.Contains(p.Expired, "/") {
		return errors.New("storage.partitions names must not contain '/'")
	}

	switch cfg.Backend {
	case BackendMemory:
		if cfg.Memory.ShardCount < 0 {
			return errors.New("storage.memory.shard_count must not be negative")
		}
	case BackendBadger:
		if cfg.Badger.InMemory {
			break
		}
		if cfg.Badger.DataDir == "" {
			return errors.New("storage.badger.data_dir is required")
		}
		if err := os.MkdirAll(cfg.Badger.DataDir, 0750); err != nil {
			return errors.New("cannot create data directory: " + err.Error())
		}
		if cfg.Badger.GCThreshold <= 0 || cfg.Badger.GCThreshold >= 1 {
			return errors.New("storage.badger.gc_threshold must be between 0 and 1")
		}
	case BackendRedis:
		if err := verifyAddr("storage.redis.addr", cfg.Redis.Addr); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of memory, badger, redis", cfg.Backend)
	}
	return nil
}

func verifySecurity(cfg *SecuritySection, backend string) error {
	if cfg.EncryptionKey == "" {
		return nil
	}
	if backend != BackendBadger {
		return fmt.Errorf("security.encryption_key is only supported by the badger backend, not %q", backend)
	}
	switch adaptive.CipherType(cfg.Cipher) {
	case adaptive.CipherAuto, adaptive.CipherAESGCM, adaptive.CipherChaCha20:
	default:
		return fmt.Errorf("security.cipher %q is not one of auto, aes-gcm, chacha20-poly1305", cfg.Cipher)
	}
	if _, err := adaptive.ParseKey(cfg.EncryptionKey, cfg.KeySalt); err != nil {
		return fmt.Errorf("security.encryption_key: %w", err)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if !logger.ValidLevel(cfg.Level) {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	if cfg.Format != "json" && cfg.Format != "text" {
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Format)
	}
	return nil
}

func verifyProxy(entry string) error {
	if entry == "" {
		return nil
	}
	if strings.Contains(entry, "/") {
		_, err := netip.ParsePrefix(entry)
		return err
	}
	_, err := netip.ParseAddr(entry)
	return err
}
