// Package adaptive provides at-rest encryption for tokstash.
//
// This package implements a cipher abstraction that automatically
// selects the best available AEAD based on the target architecture,
// plus the key handling needed to turn configuration into cipher keys.
//
// Supported Algorithms:
//
//   - AES-256-GCM: Preferred when hardware AES support is available
//   - ChaCha20-Poly1305: Fallback for systems without AES-NI
//
// Key Handling:
//
//   - ParseKey: 64 hex characters are used as a raw 32-byte key
//   - Anything else is treated as a passphrase and stretched with argon2id
//   - DeriveSubkey: HKDF-SHA256 separates keys per purpose
//
// Usage:
//
//	master, err := adaptive.ParseKey(cfg.EncryptionKey, cfg.KeySalt)
//	key, err := adaptive.DeriveSubkey(master, "tokstash/badger/records", adaptive.KeySize)
//	c, err := adaptive.New(key)
//	sealed, err := c.Encrypt(plaintext, aad)
//	plaintext, err := c.Decrypt(sealed, aad)
package adaptive
