// Package main provides the entry point for minikv-cli.
//
// minikv-cli is the command-line client for minikv. With arguments it
// sends a single command and prints the reply; without arguments it
// starts an interactive REPL.
//
// Usage:
//
//	minikv-cli -s localhost:6379 SET greeting hello
//	minikv-cli -o json KEYS '*'
//	minikv-cli repl
package main
