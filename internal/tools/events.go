package tools

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/wopr/internal/bus"
)

// EventEmitTool publishes a custom named event onto the bus.
type EventEmitTool struct {
	bus bus.EventPublisher
}

func NewEventEmitTool(publisher bus.EventPublisher) *EventEmitTool {
	return &EventEmitTool{bus: publisher}
}

func (t *EventEmitTool) Name() string        { return "event_emit" }
func (t *EventEmitTool) Description() string { return "Publish a custom named event onto the event bus." }
func (t *EventEmitTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name":    map[string]interface{}{"type": "string"},
			"payload": map[string]interface{}{"type": "string"},
		},
		"required": []string{"name"},
	}
}

func (t *EventEmitTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	name, _ := args["name"].(string)
	if name == "" {
		return ErrTool("invalid_args", "name is required")
	}
	payload, _ := args["payload"].(string)
	t.bus.Publish(bus.Event{Name: name, Payload: payload})
	return Ok(fmt.Sprintf("emitted %s", name))
}

// EventListTool reads the recorder's recent-event ring.
type EventListTool struct {
	recorder *bus.Recorder
}

func NewEventListTool(recorder *bus.Recorder) *EventListTool { return &EventListTool{recorder: recorder} }

func (t *EventListTool) Name() string        { return "event_list" }
func (t *EventListTool) Description() string { return "List recent events from the bus." }
func (t *EventListTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"limit": map[string]interface{}{"type": "number", "description": "Max events to return, most recent (default 20)"},
		},
	}
}

func (t *EventListTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	limit := 20
	if v, ok := args["limit"].(float64); ok && int(v) > 0 {
		limit = int(v)
	}
	events := t.recorder.Recent(limit)
	out := "recent events:\n"
	for _, e := range events {
		out += fmt.Sprintf("- %s: %v\n", e.Name, e.Payload)
	}
	return Ok(out)
}

// NotifyTool is the dangerous-tool-set member that surfaces a message
// directly to the user (event.emit capability, never implied by "inject"
// alone per spec §4.5).
type NotifyTool struct {
	bus bus.EventPublisher
}

func NewNotifyTool(publisher bus.EventPublisher) *NotifyTool { return &NotifyTool{bus: publisher} }

func (t *NotifyTool) Name() string        { return "notify" }
func (t *NotifyTool) Description() string { return "Send a direct notification to the user." }
func (t *NotifyTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"message": map[string]interface{}{"type": "string"},
		},
		"required": []string{"message"},
	}
}

func (t *NotifyTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	message, _ := args["message"].(string)
	if message == "" {
		return ErrTool("invalid_args", "message is required")
	}
	t.bus.Publish(bus.Event{Name: "notify", Payload: map[string]string{
		"session": TargetSessionFromCtx(ctx),
		"message": message,
	}})
	return OkWithUser(fmt.Sprintf("notified: %s", message), message)
}
