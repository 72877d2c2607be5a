// Package main provides the entry point for minikv-server.
//
// The server speaks the Redis wire protocol on a single TCP port and runs
// either as a master or, with --replicaof, as a read-only replica that
// follows a master over a replication link.
//
// Usage:
//
//	minikv-server [flags]
//	minikv-server --config /etc/minikv/minikv.yaml
//	minikv-server --port 6380 --replicaof "localhost 6379"
//
// The server loads configuration, restores the RDB snapshot if one is
// configured, and starts the RESP listener and the optional metrics
// endpoint.
package main
