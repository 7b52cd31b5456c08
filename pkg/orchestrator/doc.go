// Package orchestrator is the conversational façade: it takes a user
// message, assembles the tool catalog, delegates planning to a
// reasoning engine, executes the requested tools, and hands the
// engine's final reply back to the caller.
//
// Each message gets a fresh catalog snapshot, so a remote reconnect
// finishing mid-turn never changes the tools the engine was planning
// against. Tool executions are appended to a bounded execution log the
// caller can inspect, summarize, and export.
package orchestrator
