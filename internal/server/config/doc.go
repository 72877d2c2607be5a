// Package config provides server configuration for minikv.
//
// This package defines the server configuration structure and validation:
//
//   - spec.go: ServerConfig struct definition and derived values
//   - default.go: Default configuration values
//   - verify.go: Validation (port range, replicaof syntax, log settings)
//
// Configuration is loaded via internal/infra/confloader and supports
// multiple sources: files, environment variables, and flags.
package config
