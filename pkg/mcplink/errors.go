package mcplink

import "errors"

var (
	// ErrConnectTimeout marks a connection attempt that exceeded its budget.
	ErrConnectTimeout = errors.New("connection attempt timed out")
	// ErrConnectionRefused marks a connection the server actively refused.
	ErrConnectionRefused = errors.New("connection refused")
	// ErrProtocolNegotiation marks a reachable server that failed the MCP
	// handshake or tool listing.
	ErrProtocolNegotiation = errors.New("protocol negotiation failed")
	// ErrRetriesExhausted is returned when every connection attempt failed.
	ErrRetriesExhausted = errors.New("connection retries exhausted")
	// ErrConnectInFlight is returned when a connection attempt is already
	// running.
	ErrConnectInFlight = errors.New("connection attempt already in flight")
	// ErrNotHealthy is returned for calls submitted while the link is not
	// Healthy. No network traffic happens in that case.
	ErrNotHealthy = errors.New("remote link is not healthy")
	// ErrRemoteProtocol marks a call the server answered with a protocol
	// level error.
	ErrRemoteProtocol = errors.New("remote protocol error")
)
