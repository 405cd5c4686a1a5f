// Package logger provides structured logging for tokstash.
package logger

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/yndnr/tokstash-go/pkg/token"
)

// tokenPattern matches canonical UUIDs, the shape of issued tokens.
var tokenPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// Keys whose values are tokens. Values are replaced by fingerprints.
var tokenKeys = map[string]bool{
	"token": true,
	"tok":   true,
}

// Keys that carry UUIDs which are correlation ids, not tokens.
var correlationKeys = map[string]bool{
	"eid":        true,
	"request_id": true,
}

// Sensitive key patterns that should be fully redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"encryption_key",
	"credential",
	"authorization",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive rewrites an attribute so that neither tokens nor
// configured secrets reach the log sink.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	if a.Value.Kind() != slog.KindString {
		return a
	}

	val := a.Value.String()
	if val == "" || correlationKeys[a.Key] {
		return a
	}

	keyLower := strings.ToLower(a.Key)
	if IsSensitiveKey(keyLower) {
		return slog.String(a.Key, redactedValue)
	}
	if tokenKeys[keyLower] {
		if strings.HasPrefix(val, "fp_") {
			return a
		}
		return slog.String(a.Key, token.Fingerprint(val))
	}

	// Tokens embedded in paths, queries or error messages
	if redacted := RedactString(val); redacted != val {
		return slog.String(a.Key, redacted)
	}
	return a
}

// RedactString replaces every token-shaped substring of value with its
// fingerprint. Use this when a value is formatted before logging.
func RedactString(value string) string {
	if len(value) < token.Length {
		return value
	}
	return tokenPattern.ReplaceAllStringFunc(value, token.Fingerprint)
}

// IsSensitiveKey checks if a key name suggests secret content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
