// Package adaptive provides at-rest encryption for tokstash.
package adaptive

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the size of keys produced by this package.
const KeySize = 32

// MinPassphraseLength is the shortest passphrase ParseKey accepts.
const MinPassphraseLength = 8

// argon2id parameters (RFC 9106 second recommended option).
const (
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// Key errors.
var (
	ErrKeyTooShort       = errors.New("adaptive: key too short")
	ErrPassphraseTooWeak = errors.New("adaptive: passphrase too short (minimum 8 characters)")
)

// ParseKey turns a configured secret into a master key.
//
// A value of exactly 64 hex characters is decoded as a raw 32-byte key.
// Any other value is a passphrase stretched with argon2id using salt.
// The same inputs always yield the same key, so data sealed by one
// process can be opened after a restart.
func ParseKey(secret, salt string) ([]byte, error) {
	if len(secret) == hex.EncodedLen(KeySize) {
		if raw, err := hex.DecodeString(secret); err == nil {
			return raw, nil
		}
	}
	return DeriveKeyFromPassphrase([]byte(secret), []byte(salt))
}

// DeriveKeyFromPassphrase stretches a passphrase into a KeySize key.
func DeriveKeyFromPassphrase(passphrase, salt []byte) ([]byte, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooWeak
	}
	if len(salt) == 0 {
		return nil, errors.New("adaptive: salt is required")
	}

	return argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, KeySize), nil
}

// DeriveSubkey derives a purpose-bound subkey from a master key using HKDF.
func DeriveSubkey(masterKey []byte, info string, length int) ([]byte, error) {
	if len(masterKey) < 16 {
		return nil, ErrKeyTooShort
	}

	reader := hkdf.New(sha256.New, masterKey, nil, []byte(info))
	key := make([]byte, length)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("adaptive: derive subkey: %w", err)
	}
	return key, nil
}

// NewFromSecret is ParseKey, DeriveSubkey and New in one call.
func NewFromSecret(secret, salt, purpose string) (Cipher, error) {
	return NewFromSecretWithType(secret, salt, purpose, CipherAuto)
}

// NewFromSecretWithType is NewFromSecret with an explicit algorithm.
// CipherAuto picks one for this machine.
func NewFromSecretWithType(secret, salt, purpose string, cipherType CipherType) (Cipher, error) {
	master, err := ParseKey(secret, salt)
	if err != nil {
		return nil, err
	}
	key, err := DeriveSubkey(master, purpose, KeySize)
	if err != nil {
		return nil, err
	}
	if cipherType == CipherAuto {
		return New(key)
	}
	return NewWithType(key, cipherType)
}
