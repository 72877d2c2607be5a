// Package handler provides the HTTP handlers behind the observability
// endpoints.
//
// All JSON responses share the Response envelope; /metrics is served by
// promhttp and bypasses it.
package handler
