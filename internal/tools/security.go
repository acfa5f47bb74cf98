package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/wopr/internal/security"
)

// SecurityWhoamiTool is an introspection tool (spec §4.1): it bypasses
// TOOL_CAPABILITY_MAP entirely and reports the caller's own resolved
// SecurityContext so a session can reason about its own privilege.
type SecurityWhoamiTool struct{}

func NewSecurityWhoamiTool() *SecurityWhoamiTool { return &SecurityWhoamiTool{} }

func (t *SecurityWhoamiTool) Name() string        { return "security_whoami" }
func (t *SecurityWhoamiTool) Description() string { return "Report the caller's own trust level and capabilities." }
func (t *SecurityWhoamiTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *SecurityWhoamiTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	sc, ok := SecurityContextFromCtx(ctx)
	if !ok {
		return ErrTool("internal", "no security context bound to this request")
	}
	return Ok(fmt.Sprintf("source=%s trust=%s capabilities=[%s]",
		sc.Source.Type, sc.TrustLevel, strings.Join(sc.SortedCapabilities(), ", ")))
}

// SecurityCheckTool checks whether the caller (or, with an explicit
// capability argument, a hypothetical caller) would pass a capability
// gate, without executing anything. Also an introspection tool.
type SecurityCheckTool struct {
	kernel *security.Kernel
}

func NewSecurityCheckTool(kernel *security.Kernel) *SecurityCheckTool {
	return &SecurityCheckTool{kernel: kernel}
}

func (t *SecurityCheckTool) Name() string        { return "security_check" }
func (t *SecurityCheckTool) Description() string { return "Check whether the caller holds a capability." }
func (t *SecurityCheckTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"capability": map[string]interface{}{"type": "string"},
		},
		"required": []string{"capability"},
	}
}

func (t *SecurityCheckTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	capability, _ := args["capability"].(string)
	if capability == "" {
		return ErrTool("invalid_args", "capability is required")
	}
	sc, ok := SecurityContextFromCtx(ctx)
	if !ok {
		return ErrTool("internal", "no security context bound to this request")
	}
	if t.kernel.CheckCapability(sc, capability) {
		return Ok(fmt.Sprintf("%s: allowed", capability))
	}
	return Ok(fmt.Sprintf("%s: denied", capability))
}
