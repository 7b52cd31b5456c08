package toolset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptor_SchemaMap_FromParameters(t *testing.T) {
	desc := Descriptor{
		Name:        "divide",
		Description: "Divide two numbers",
		Origin:      OriginLocal,
		Parameters: []Parameter{
			{Name: "a", Type: "number", Description: "dividend", Required: true},
			{Name: "b", Type: "number", Description: "divisor", Required: true},
		},
	}

	schema := desc.SchemaMap()
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, false, schema["additionalProperties"])

	properties, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, properties, "a")
	assert.Contains(t, properties, "b")
	assert.ElementsMatch(t, []string{"a", "b"}, schema["required"])
}

func TestDescriptor_SchemaMap_AdvertisedSchemaWins(t *testing.T) {
	advertised := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string"},
		},
	}
	desc := Descriptor{
		Name:        "search",
		Description: "Search pages",
		Origin:      OriginRemote,
		InputSchema: advertised,
		Parameters: []Parameter{
			{Name: "ignored", Type: "string", Description: "never used"},
		},
	}

	assert.Equal(t, advertised, desc.SchemaMap())
}

func TestDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		wantErr bool
	}{
		{
			name: "valid",
			desc: Descriptor{Name: "ok", Description: "fine"},
		},
		{
			name:    "empty name",
			desc:    Descriptor{Description: "nameless"},
			wantErr: true,
		},
		{
			name:    "empty description on local tool",
			desc:    Descriptor{Name: "bare", Origin: OriginLocal},
			wantErr: true,
		},
		{
			name: "empty description on remote tool is accepted",
			desc: Descriptor{Name: "advertised", Origin: OriginRemote},
		},
		{
			name: "bad parameter type",
			desc: Descriptor{
				Name:        "odd",
				Description: "has a bogus type",
				Parameters:  []Parameter{{Name: "x", Type: "decimal"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParametersFromSchema(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "search query",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "maximum results",
				"default":     float64(10),
			},
		},
		"required": []interface{}{"query"},
	}

	params := ParametersFromSchema(schema)
	require.Len(t, params, 2)

	// Sorted by name for stability.
	assert.Equal(t, "limit", params[0].Name)
	assert.Equal(t, "integer", params[0].Type)
	assert.False(t, params[0].Required)
	assert.Equal(t, float64(10), params[0].Default)

	assert.Equal(t, "query", params[1].Name)
	assert.Equal(t, "string", params[1].Type)
	assert.True(t, params[1].Required)
}

func TestParametersFromSchema_NilAndMalformed(t *testing.T) {
	assert.Nil(t, ParametersFromSchema(nil))
	assert.Nil(t, ParametersFromSchema(map[string]interface{}{"type": "object"}))
	assert.Nil(t, ParametersFromSchema(map[string]interface{}{"properties": "not a map"}))
}
