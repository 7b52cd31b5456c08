// Package toolset defines tool descriptors and the merged catalog the
// orchestrator exposes to its reasoning engine.
//
// Invariants:
// - Catalog order is deterministic: local descriptors first, then remote.
// - Name collisions keep the local descriptor and drop the remote one.
// - Arguments are schema-validated before any handler or network call.
// - A Registry is a pure value snapshot; rebuilding it has no side effects.
//
// Usage:
//
//	catalog := toolset.Merge(localDescriptors, remoteDescriptors)
//	desc, ok := catalog.Lookup("add")
//	if ok {
//		err := catalog.ValidateArgs("add", map[string]interface{}{"a": 1, "b": 2})
//		_ = err
//	}
package toolset
