package providers

// Option keys recognized in ChatRequest.Options. Only MaxTokens and
// Temperature survive from goclaw's fuller option set — thinking-budget
// and reasoning-effort knobs are dropped along with the Thinking response
// field, since WOPR has no extended-reasoning surface in scope.
const (
	OptMaxTokens   = "max_tokens"
	OptTemperature = "temperature"
)

// CleanSchemaForProvider strips JSON Schema keywords a given provider's
// tool-calling API rejects. Anthropic's input_schema is the strictest of
// the two surfaces WOPR talks to: it rejects "additionalProperties" and
// "$schema" on nested objects.
func CleanSchemaForProvider(provider string, schema map[string]interface{}) map[string]interface{} {
	if schema == nil {
		return nil
	}
	cleaned := make(map[string]interface{}, len(schema))
	for k, v := range schema {
		if provider == "anthropic" && (k == "additionalProperties" || k == "$schema") {
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			cleaned[k] = CleanSchemaForProvider(provider, nested)
			continue
		}
		cleaned[k] = v
	}
	return cleaned
}

// CleanToolSchemas applies CleanSchemaForProvider across a tool definition
// list and re-wraps them in OpenAI's {type, function} envelope.
func CleanToolSchemas(provider string, tools []ToolDefinition) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        t.Function.Name,
				"description": t.Function.Description,
				"parameters":  CleanSchemaForProvider(provider, t.Function.Parameters),
			},
		})
	}
	return out
}
