// Package history persists conversation turns as JSONL files, one file per
// conversation.
//
// Invariants:
// - Conversation keys are validated and path-safe.
// - Writes for the same conversation are serialized.
// - Append/load/delete operations are observable via tracing and metrics.
//
// Usage:
//
//	store, _ := history.New("/tmp/miso/conversations")
//	_ = store.Append(ctx, "default", history.Turn{Role: "user", Content: "hello"})
//	turns, _ := store.Load(ctx, "default")
//	_ = turns
package history
