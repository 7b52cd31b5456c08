package toolset

import (
	"context"
	"fmt"
)

// Origin identifies where a tool executes.
type Origin string

const (
	// OriginLocal marks tools that run in-process.
	OriginLocal Origin = "local"
	// OriginRemote marks tools advertised by the remote MCP server.
	OriginRemote Origin = "remote"
)

// String returns the origin label used in records and logs.
func (o Origin) String() string {
	return string(o)
}

// Parameter defines a single tool parameter.
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// Handler is the function signature for local tool execution.
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Descriptor describes a callable tool.
//
// Local descriptors declare Parameters and carry a Handler. Remote
// descriptors carry the schema the server advertised in InputSchema and
// leave Handler nil; dispatch for them goes through the remote link.
type Descriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Origin      Origin                 `json:"origin"`
	Parameters  []Parameter            `json:"parameters,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
	Handler     Handler                `json:"-"`
}

// SchemaMap returns the JSON Schema governing the descriptor's arguments.
// The server-advertised schema wins when present; otherwise the schema is
// derived from the declared parameters.
func (d *Descriptor) SchemaMap() map[string]interface{} {
	if d.InputSchema != nil {
		return d.InputSchema
	}
	return schemaFromParameters(d.Parameters)
}

// Validate checks the descriptor is well formed enough to register. Remote
// descriptors are accepted as advertised, including an empty description;
// locally authored tools must describe themselves.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if d.Origin != OriginRemote && d.Description == "" {
		return fmt.Errorf("tool %s: description cannot be empty", d.Name)
	}
	for _, param := range d.Parameters {
		if param.Name == "" {
			return fmt.Errorf("tool %s: parameter name cannot be empty", d.Name)
		}
		if !validParamTypes[param.Type] {
			return fmt.Errorf("tool %s: invalid parameter type %q for %s", d.Name, param.Type, param.Name)
		}
	}
	return nil
}

var validParamTypes = map[string]bool{
	"string": true, "number": true, "boolean": true,
	"object": true, "array": true, "integer": true,
}

// schemaFromParameters builds an object schema from a declared parameter
// list. Unknown properties are rejected so malformed calls fail validation
// instead of silently reaching a handler.
func schemaFromParameters(params []Parameter) map[string]interface{} {
	properties := make(map[string]interface{}, len(params))
	required := []string{}

	for _, param := range params {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// ParametersFromSchema derives a display-friendly parameter list from a
// JSON Schema object, as advertised by a remote server.
func ParametersFromSchema(schema map[string]interface{}) []Parameter {
	if schema == nil {
		return nil
	}

	properties, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return nil
	}

	required := make(map[string]bool)
	if reqList, ok := schema["required"].([]interface{}); ok {
		for _, r := range reqList {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}

	params := make([]Parameter, 0, len(properties))
	for name, propData := range properties {
		prop, ok := propData.(map[string]interface{})
		if !ok {
			continue
		}
		param := Parameter{
			Name:     name,
			Required: required[name],
		}
		if typeVal, ok := prop["type"].(string); ok {
			param.Type = typeVal
		}
		if desc, ok := prop["description"].(string); ok {
			param.Description = desc
		}
		if defVal, ok := prop["default"]; ok {
			param.Default = defVal
		}
		params = append(params, param)
	}

	sortParameters(params)
	return params
}

// sortParameters orders parameters by name so derived lists are stable.
func sortParameters(params []Parameter) {
	for i := 0; i < len(params)-1; i++ {
		for j := i + 1; j < len(params); j++ {
			if params[j].Name < params[i].Name {
				params[i], params[j] = params[j], params[i]
			}
		}
	}
}
