// Package mcplink owns the lifecycle of the connection to the remote MCP
// tool server.
//
// The link moves through four states:
//
//	Disconnected -> Connecting -> Healthy
//	                          \-> Degraded
//
// Connect runs a bounded number of attempts with doubling backoff; when all
// attempts fail the link lands in Degraded and remote tools are withdrawn
// while local tools keep serving. While Healthy, call failures increment a
// consecutive-failure counter: connection-shaped failures trigger a
// single-flight background reconnect, and reaching the failure threshold
// degrades the link until the reconnect cooldown elapses.
//
// Invariants:
//   - At most one connection attempt is in flight at any time.
//   - Tools are exposed only while the link is Healthy.
//   - A tool-level error result (IsError) is not a link failure.
//   - The API key never appears in the endpoint, logs, or errors; the
//     transport injects it per request.
package mcplink
