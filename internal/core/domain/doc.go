// Package domain defines the core domain models for minikv.
//
// Domain models are plain values without any IO dependencies:
//
//   - Command: a parsed request with its resolved tag and wire bytes
//   - Entry: a key, its value and optional absolute expiry
//   - Role: master or replica
//   - Errors: the error kinds that decide whether a connection survives
package domain
