// Package relay implements the session registry and per-session driver that
// bridge a long-polling HTTP client to a single upstream WebSocket
// connection.
package relay

import "time"

// Config holds the timing defaults that govern session liveness and
// long-poll wait behavior. Values match the upstream proxy this gateway
// replaces and should not be changed casually — clients are written against
// these defaults.
type Config struct {
	// KeepAlive bounds how long a long-poll read waits for new frames
	// before returning an empty result.
	KeepAlive time.Duration

	// MaxBatchDuration caps the extra sleep a caller may request via
	// batch_ms on a long-poll read, regardless of what it asks for.
	MaxBatchDuration time.Duration

	// ConnectionPollTimeout is the longest a session may go without a
	// long-poll read before the driver considers the client gone and
	// closes the upstream connection.
	ConnectionPollTimeout time.Duration

	// ConnectionTimeout is the longest a session may go without a frame
	// from upstream before the driver considers the upstream connection
	// dead.
	ConnectionTimeout time.Duration

	// ClosedConnectionExpiry is how long a session is retained in the
	// registry after it stops being alive, so that a final drain can
	// still observe the close.
	ClosedConnectionExpiry time.Duration

	// OutboundQueueSize bounds the number of pending outbound commands
	// (sends/closes) a session will buffer. A send or close that finds
	// the queue full is rejected with SocketChannelSendError; the HTTP
	// handler does not wait for room.
	OutboundQueueSize int

	// HeartbeatInterval is the tick rate of the driver's liveness check.
	HeartbeatInterval time.Duration
}

// DefaultConfig returns the gateway's default timing configuration.
func DefaultConfig() Config {
	return Config{
		KeepAlive:              20 * time.Second,
		MaxBatchDuration:       5 * time.Second,
		ConnectionPollTimeout:  30 * time.Second,
		ConnectionTimeout:      55 * time.Second,
		ClosedConnectionExpiry: 15 * time.Second,
		OutboundQueueSize:      64,
		HeartbeatInterval:      1 * time.Second,
	}
}
