// Package replication implements master/replica replication.
//
// On a master, Manager keeps the registry of attached replicas. Every
// write is appended to each replica's FIFO queue and drained by a
// dedicated goroutine, so a slow replica never holds up the client that
// issued the write or the other replicas. WAIT probes replicas with
// REPLCONF GETACK and counts the acknowledgements.
//
// On a replica, Link performs the handshake with the master, loads the
// snapshot it receives and then replays the command stream.
//
// State carries the role, replication ID and offset. It is created once at
// startup and shared by the engine, the manager and the link.
package replication
