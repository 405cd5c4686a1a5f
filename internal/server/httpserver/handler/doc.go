// Package handler provides HTTP request handlers for tokstash.
//
// This package contains handlers for all HTTP endpoints:
//
//   - token.go: create, validate, expire, update_expiration, get_expired
//   - health.go: diagnostic, health and readiness checks
//   - params.go: payload and TTL decoding from query, form or JSON
//   - types.go: response bodies and shaping (no-cache, JSONP, error ids)
//
// All handlers follow a consistent pattern:
//
//   - Parse and validate request
//   - Call the engine
//   - Shape the result; unknown and expired tokens share one answer
package handler
