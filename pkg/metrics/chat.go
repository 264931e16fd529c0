package metrics

import "time"

// ChatMetrics provides observability for the chat engine.
//
// Implementations collect metrics about the connection lifecycle, logins,
// broadcast fan-out and the tick loop. This interface is optional: when a nil
// ChatMetrics is handed to the server or a handler, a no-op implementation is
// used with zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	metrics.InitRegistry()
//	m := prometheus.NewChatMetrics()
//	srv := server.New(cfg, journal, m)
//
//	// Without metrics (no-op)
//	srv := server.New(cfg, journal, nil)
type ChatMetrics interface {
	// RecordConnectionAccepted increments the accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionRejected increments the counter of connections turned
	// away because the server was full.
	RecordConnectionRejected()

	// RecordConnectionClosed increments the counter of reaped sessions.
	RecordConnectionClosed()

	// SetActiveSessions updates the current registry size.
	SetActiveSessions(count int)

	// RecordLogin increments the successful username negotiations counter.
	RecordLogin()

	// RecordEviction increments the inactivity eviction counter.
	RecordEviction()

	// RecordBroadcast records one drained broadcast and the number of
	// recipients it was handed to.
	RecordBroadcast(recipients int)

	// RecordDeliveryFailure increments the failed delivery counter.
	RecordDeliveryFailure()

	// RecordCommand increments the slash command counter.
	//
	// Parameters:
	//   - name: "/help", "/quit", "/logs" or "unknown"
	RecordCommand(name string)

	// RecordTick records how long one tick of the housekeeping loop took.
	RecordTick(duration time.Duration)
}

// noopChatMetrics is a no-op implementation used when metrics are disabled.
type noopChatMetrics struct{}

// NewNoopChatMetrics returns a ChatMetrics that discards everything.
func NewNoopChatMetrics() ChatMetrics {
	return noopChatMetrics{}
}

func (noopChatMetrics) RecordConnectionAccepted() {}
func (noopChatMetrics) RecordConnectionRejected() {}
func (noopChatMetrics) RecordConnectionClosed() {}
func (noopChatMetrics) SetActiveSessions(int) {}
func (noopChatMetrics) RecordLogin() {}
func (noopChatMetrics) RecordEviction() {}
func (noopChatMetrics) RecordBroadcast(int) {}
func (noopChatMetrics) RecordDeliveryFailure() {}
func (noopChatMetrics) RecordCommand(string) {}
func (noopChatMetrics) RecordTick(time.Duration) {}
