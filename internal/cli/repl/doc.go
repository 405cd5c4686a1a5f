// Package repl provides the interactive shell of tokstash-cli.
//
//   - repl.go: read loop, built-ins and dispatch
//   - split.go: shell-style argument splitting
//   - completer.go: command name lookup for help
//   - history.go: command history persistence
package repl
