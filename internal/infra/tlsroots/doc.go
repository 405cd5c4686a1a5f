// Package tlsroots provides TLS certificate management.
//
// It loads trust roots for clients and serving key pairs for servers.
// Key pairs are reloaded when their files change, so certificates can be
// rotated without a restart.
package tlsroots
