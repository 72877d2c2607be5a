// Package repl provides interactive mode for minikv-cli.
//
// This package implements the Read-Eval-Print Loop for interactive sessions:
//
//   - repl.go: main loop, line splitting and built-in commands
//   - completer.go: command name completion
//   - history.go: command history persistence
//
// Lines are split like a shell: whitespace separates arguments, single
// and double quotes group them, and backslash escapes work inside double
// quotes.
package repl
