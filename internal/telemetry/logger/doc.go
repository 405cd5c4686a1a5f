// Package logger configures log/slog for tokstash.
//
// New returns a JSON or text logger with a process-wide level that
// SetLevel adjusts at runtime. Every record goes through redaction:
// token values are replaced by fingerprints wherever they appear, and
// secret-looking keys are masked. A request ID stored with WithRequestID
// is attached to any record logged with that context.
package logger
