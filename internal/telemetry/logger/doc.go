// Package logger provides structured logging for minikv.
//
// This package wraps log/slog:
//
//   - logger.go: logger construction and dynamic level
//   - context.go: context-aware logging with connection IDs
//   - redact.go: credential redaction and value truncation
//
// Features:
//
//   - JSON and text output formats
//   - Log level filtering, adjustable at runtime
//   - Masking of credential-like attributes
//   - Truncation of large stored values
//   - Connection ID propagation through context.Context
package logger
