package toolset

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// Registry is an immutable snapshot of the merged tool catalog. It is
// rebuilt per request from the local provider and the remote link, so a
// reconnect finishing mid-request never changes a catalog already handed
// to the reasoning engine.
type Registry struct {
	order   []string
	entries map[string]*Descriptor
	schemas map[string]*gojsonschema.Schema
}

// Merge builds a registry from local and remote descriptors. Local
// descriptors come first in declaration order, then remote ones. A remote
// descriptor whose name collides with a local one is dropped; local tools
// are the trusted default. Descriptors that fail validation or whose
// schema does not compile are dropped with a warning rather than left in
// the catalog unvalidated.
func Merge(local, remote []Descriptor) *Registry {
	r := &Registry{
		entries: make(map[string]*Descriptor, len(local)+len(remote)),
		schemas: make(map[string]*gojsonschema.Schema, len(local)+len(remote)),
	}

	for i := range local {
		r.add(&local[i])
	}
	for i := range remote {
		if _, exists := r.entries[remote[i].Name]; exists {
			log.Warn().
				Str("tool", remote[i].Name).
				Msg("Remote tool shadowed by local tool with the same name")
			continue
		}
		r.add(&remote[i])
	}

	return r
}

func (r *Registry) add(desc *Descriptor) {
	if err := desc.Validate(); err != nil {
		log.Warn().Err(err).Str("tool", desc.Name).Msg("Dropping invalid tool descriptor")
		return
	}
	if _, exists := r.entries[desc.Name]; exists {
		// Duplicate within the same origin keeps the first declaration.
		log.Warn().Str("tool", desc.Name).Msg("Dropping duplicate tool descriptor")
		return
	}

	schema, err := compileSchema(desc)
	if err != nil {
		log.Warn().Err(err).Str("tool", desc.Name).Msg("Dropping tool with uncompilable schema")
		return
	}

	copied := *desc
	r.entries[desc.Name] = &copied
	r.schemas[desc.Name] = schema
	r.order = append(r.order, desc.Name)
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	desc, ok := r.entries[name]
	return desc, ok
}

// Names returns all tool names in catalog order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Descriptors returns all descriptors in catalog order.
func (r *Registry) Descriptors() []*Descriptor {
	descs := make([]*Descriptor, 0, len(r.order))
	for _, name := range r.order {
		descs = append(descs, r.entries[name])
	}
	return descs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

// CountByOrigin returns how many tools in the catalog have the given origin.
func (r *Registry) CountByOrigin(origin Origin) int {
	count := 0
	for _, desc := range r.entries {
		if desc.Origin == origin {
			count++
		}
	}
	return count
}

// ValidateArgs validates args against the named tool's schema. It never
// invokes the handler. A missing tool is reported as an error so callers
// can classify it the same way as malformed arguments.
func (r *Registry) ValidateArgs(name string, args map[string]interface{}) error {
	schema, ok := r.schemas[name]
	if !ok {
		return fmt.Errorf("tool not found: %s", name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		details := []string{}
		for _, resultErr := range result.Errors() {
			details = append(details, resultErr.String())
		}
		return fmt.Errorf("invalid arguments for %s: %v", name, details)
	}
	return nil
}

func compileSchema(desc *Descriptor) (*gojsonschema.Schema, error) {
	loader := gojsonschema.NewGoLoader(desc.SchemaMap())
	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", desc.Name, err)
	}
	return schema, nil
}
