// Package chat contains the session engine shared by every DittoChat transport.
//
// The package is organized around four pieces:
//   - Session: one connected peer, its negotiated username, activity clock and
//     outbound queue
//   - Registry: the capacity-bounded set of live sessions
//   - BroadcastQueue: FIFO of pending chat lines waiting for fan-out
//   - Handler: the per-connection protocol state machine
//     (Greeting -> UsernameNegotiation -> Active -> Terminated)
//
// The periodic housekeeping that ties these together (eviction, fan-out,
// reaping, shutdown) lives in pkg/server. Transports live in pkg/adapter and
// only need to provide a Conn.
//
// Locking discipline:
// Registry, BroadcastQueue and each Session's write path are guarded by
// independent mutexes. None of them is held while acquiring another, and the
// registry lock is never held across socket I/O.
package chat
