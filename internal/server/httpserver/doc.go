// Package httpserver provides the HTTP/HTTPS server for tokstash.
//
// It wires the token handlers from the handler subpackage behind a
// middleware chain built on net/http:
//
//   - RequestID: propagates X-Request-ID or assigns a ULID
//   - Recover: turns panics into 500 responses carrying an eid
//   - AppHeaders: X-HOSTNAME and X-APP-VERSION on every response
//   - CORS: echoes Origin with credentials and answers OPTIONS with 204
//   - RateLimit: per-client token buckets (optional)
//   - Audit: structured request log plus Prometheus request metrics
//
// Audit logs and metric labels use the matched route pattern, never the
// request path, so token values stay out of both.
package httpserver
