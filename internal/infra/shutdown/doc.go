// Package shutdown provides graceful shutdown for minikv-server.
//
// A Handler waits for SIGINT, SIGTERM or cancellation of its context
// (for example when the replication link fails), then runs the registered
// hooks in reverse order under a timeout.
//
// Usage:
//
//	h := shutdown.NewHandler(10 * time.Second)
//	h.OnShutdown(srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
