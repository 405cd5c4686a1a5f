// Package config provides tokstash-cli configuration.
//
// Settings are read from ~/.tokstash/cli.yaml when present. Command
// line flags and TOKSTASH_* environment variables take precedence.
package config
