// Package main provides the entry point for tokstash-server.
//
// The server exposes the token store over:
//
//   - HTTP/HTTPS (create, validate, expire, update_expiration, get_expired)
//   - the Redis protocol (TOKEN.* commands), when enabled
//
// Usage:
//
//	tokstash-server [flags]
//	tokstash-server --config /path/to/config.yaml
//
// The server loads configuration, opens the configured backend and starts
// all configured listeners.
package main
