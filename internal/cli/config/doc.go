// Package config defines the minikv-cli configuration file.
//
// The file lives at ~/.minikv/cli.yaml and stores defaults for the server
// address, output format and timeout. Flags and MINIKV_* environment
// variables override it.
package config
