// Package httpserver provides the observability HTTP server for minikv.
//
// The server is optional and only starts when metrics.addr is set:
//
//   - /metrics: Prometheus exposition
//   - /health: liveness
//   - /ready: readiness (a replica is ready once its link is streaming)
//   - /status: role, key count and replication offset
//   - /version: build information
//
// Middleware: RequestID, Recover, AccessLog.
package httpserver
