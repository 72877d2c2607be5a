// Package service provides the command engine for minikv.
//
// The Engine maps a parsed command to its handler, runs it against the
// key-value store and the snapshot file, writes the reply and, on a
// master, hands write commands to the replication manager.
//
// This package contains:
//
//   - Engine: command table, dispatch, write propagation
//   - handlers for the string, server and replication commands
//   - glob matching for KEYS patterns
//
// Commands replayed from an upstream master run through ExecuteReplayed,
// which has the same side effects as Execute but discards the reply and
// never propagates.
package service
