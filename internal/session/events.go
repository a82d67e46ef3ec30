package session

import (
	"github.com/eldtechnologies/chatsim/internal/view"
)

// Cue is an audio feedback request for the presentation layer.
type Cue struct {
	Name        string `json:"name"`
	FrequencyHz int    `json:"frequencyHz"`
	DurationMS  int    `json:"durationMs"`
}

var (
	// SendCue plays after the user sends a message or image.
	SendCue = Cue{Name: "send", FrequencyHz: 900, DurationMS: 60}
	// ReplyCue plays when a bot reply lands.
	ReplyCue = Cue{Name: "reply", FrequencyHz: 600, DurationMS: 70}
)

// EventType distinguishes events delivered to subscribers.
type EventType string

const (
	EventRender EventType = "render"
	EventCue    EventType = "cue"
)

// Event is pushed to subscribers. Render events carry a full frame;
// a frame whose Version is lower than one already painted can be dropped.
type Event struct {
	Type   EventType    `json:"type"`
	Screen *view.Screen `json:"screen,omitempty"`
	Cue    *Cue         `json:"cue,omitempty"`
}

// Subscriber receives events. It must not block.
type Subscriber func(Event)
