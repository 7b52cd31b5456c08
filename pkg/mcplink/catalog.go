package mcplink

import (
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dajeong/miso/pkg/toolset"
)

// descriptorsFromTools converts the server's advertised tools into remote
// catalog descriptors. The advertised schema is kept verbatim; the derived
// parameter list exists only for display.
func descriptorsFromTools(tools []*mcp.Tool) []toolset.Descriptor {
	out := make([]toolset.Descriptor, 0, len(tools))
	for _, tool := range tools {
		if tool == nil || tool.Name == "" {
			continue
		}
		schema := schemaToMap(tool.InputSchema)
		out = append(out, toolset.Descriptor{
			Name:        tool.Name,
			Description: tool.Description,
			Origin:      toolset.OriginRemote,
			InputSchema: schema,
			Parameters:  toolset.ParametersFromSchema(schema),
		})
	}
	return out
}

// schemaToMap normalizes whatever schema value the SDK surfaced into a
// plain map.
func schemaToMap(schema interface{}) map[string]interface{} {
	if schema == nil {
		return nil
	}
	if m, ok := schema.(map[string]interface{}); ok {
		return m
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func textContent(res *mcp.CallToolResult) string {
	var parts []string
	for _, content := range res.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}
