package providers

import "testing"

func TestCleanSchemaForProvider_StripsAnthropicUnsupportedKeywords(t *testing.T) {
	schema := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":                 "string",
				"additionalProperties": false,
			},
		},
	}

	cleaned := CleanSchemaForProvider("anthropic", schema)
	if _, ok := cleaned["additionalProperties"]; ok {
		t.Fatal("expected top-level additionalProperties stripped")
	}
	if _, ok := cleaned["$schema"]; ok {
		t.Fatal("expected $schema stripped")
	}
	props := cleaned["properties"].(map[string]interface{})
	path := props["path"].(map[string]interface{})
	if _, ok := path["additionalProperties"]; ok {
		t.Fatal("expected nested additionalProperties stripped")
	}
}

func TestCleanSchemaForProvider_LeavesOtherProvidersUntouched(t *testing.T) {
	schema := map[string]interface{}{"additionalProperties": false}
	cleaned := CleanSchemaForProvider("openai", schema)
	if _, ok := cleaned["additionalProperties"]; !ok {
		t.Fatal("expected additionalProperties preserved for non-anthropic providers")
	}
}

func TestCleanToolSchemas_WrapsInFunctionEnvelope(t *testing.T) {
	tools := []ToolDefinition{
		{Type: "function", Function: ToolFunctionSchema{
			Name:        "memory_read",
			Description: "read memory",
			Parameters:  map[string]interface{}{"type": "object"},
		}},
	}
	out := CleanToolSchemas("openai", tools)
	if len(out) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(out))
	}
	if out[0]["type"] != "function" {
		t.Fatalf("expected function envelope, got %v", out[0]["type"])
	}
	fn := out[0]["function"].(map[string]interface{})
	if fn["name"] != "memory_read" {
		t.Fatalf("expected memory_read, got %v", fn["name"])
	}
}
