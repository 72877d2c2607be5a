// Package resp implements the RESP wire framing used by minikv.
//
// Reader decodes requests and replies while counting every byte it
// consumes, and captures the raw bytes of each top-level command so that
// writes can be forwarded to replicas verbatim. Writer serializes replies
// and is safe for concurrent use.
package resp
