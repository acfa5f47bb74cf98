package tools

import (
	"context"

	"github.com/nextlevelbuilder/wopr/internal/providers"
)

// Tool is the interface every C6 tool handler implements, matching the
// shape goclaw's concrete tools (e.g. SessionsListTool) expose.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// ToProviderDef converts a registered Tool into the wire schema sent to an
// LLM provider.
func ToProviderDef(t Tool) providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}
