package httpapi

import (
	"github.com/nextlevelbuilder/wopr/internal/bus"
	"github.com/nextlevelbuilder/wopr/internal/store"
)

func sessionCreateEvent(name string) bus.Event {
	return bus.Event{Name: bus.EventSessionCreate, Payload: map[string]interface{}{"session": name}}
}

func sessionDestroyEvent(name, reason string, log []store.ConversationEntry) bus.Event {
	return bus.Event{Name: bus.EventSessionDestroy, Payload: map[string]interface{}{
		"session": name,
		"reason":  reason,
		"log":     log,
	}}
}
