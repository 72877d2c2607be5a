// Package redisserver provides the RESP TCP server for minikv.
//
// Each accepted connection is served by its own goroutine, which reads
// commands with pkg/resp, runs them through the command engine and
// flushes the replies. Connections that issue PSYNC become replica links
// and are fed by the replication manager from then on.
package redisserver
