// Package buildinfo provides build information for tokstash.
//
// This package exposes build-time information injected via ldflags:
//
//   - Version: Semantic version (e.g., "1.0.0")
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go runtime version
//
// The server reports Version in the X-APP-VERSION header and the
// /diagnostic route.
package buildinfo
