// Package respstream implements the MPMC response-dispatch stream: it
// binds N per-connection request slots onto one bidirectional backend
// connection, so a single socket can multiplex many concurrently
// in-flight requests from many client connections.
//
// A request-side task drains a pending bitmap (plus a small noreply
// queue) and writes outbound bytes to the backend; a response-side task
// parses backend frames, extracts the sequence number each one answers,
// and routes it back to the slot that issued it. The client-facing half
// of each slot is PollNext, which blocks the owning connection's
// goroutine until its response has landed.
//
// Pool keys a set of Streams by backend address, one Stream per backend
// connection, using the sharded concurrent map from pkg/cmap.
package respstream
