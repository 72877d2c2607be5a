// Package command provides CLI command definitions for minikv-cli.
//
// It uses urfave/cli/v2 for command parsing and supports both
// single-command mode (minikv-cli SET k v) and interactive REPL mode
// (minikv-cli with no arguments).
package command
