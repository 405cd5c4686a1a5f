// Package config provides server configuration for tokstash.
//
// This package defines the server configuration structure and validation:
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - load.go: Defaults, then YAML file, TOKSTASH_ env and -set overrides
//   - verify.go: Business validation (addresses, backend options, keys)
//   - sanitize.go: Log sanitization (hide sensitive values)
//
// Configuration is loaded via internal/infra/confloader.
package config
