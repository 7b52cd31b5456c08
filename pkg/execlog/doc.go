// Package execlog records structured tool invocation telemetry in a
// bounded in-memory log.
//
// Invariants:
// - A Record is finalized once by its producer and never mutated afterwards.
// - The log keeps at most its configured capacity; the oldest records are
//   evicted first.
// - Snapshot and Recent return copies in insertion order; callers can hold
//   them without synchronization.
package execlog
