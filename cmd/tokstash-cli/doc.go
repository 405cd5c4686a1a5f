// Package main provides the entry point for tokstash-cli.
//
// Usage:
//
//	tokstash-cli [--server ADDR] [--output table|json|yaml] COMMAND
//	tokstash-cli create --ttl 3600 -d user=alice -d role=admin
//	tokstash-cli validate 0b6f3a52-9c4e-4d7e-8f21-3b5a7c9d1e2f
//
// Exit status is 0 on success, 2 when the server answers "invalid token"
// and 1 for any other failure.
package main
