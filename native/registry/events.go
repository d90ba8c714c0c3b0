package registry

import (
	"fanvault/core/events"
	"fanvault/core/types"
)

const (
	// EventTypeCreatorRegistered is emitted when a new creator joins the platform.
	EventTypeCreatorRegistered = "registry.creator.registered"
	// EventTypeContentPublished is emitted when a creator publishes a content reference.
	EventTypeContentPublished = "registry.content.published"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// CreatorRegisteredEvent returns the structured payload announcing a new creator.
func CreatorRegisteredEvent(creator string, name string) *types.Event {
	return &types.Event{
		Type: EventTypeCreatorRegistered,
		Attributes: map[string]string{
			"creator": creator,
			"name":    name,
		},
	}
}

// ContentPublishedEvent returns the structured payload for publication announcements.
func ContentPublishedEvent(creator string, uri string) *types.Event {
	return &types.Event{
		Type: EventTypeContentPublished,
		Attributes: map[string]string{
			"creator": creator,
			"uri":     uri,
		},
	}
}
