// Package view turns the conversation log into toolkit-independent render
// instructions. Every render is a full re-projection of current state.
package view

import (
	"github.com/eldtechnologies/chatsim/internal/models"
	"github.com/eldtechnologies/chatsim/internal/persona"
)

// Side is the column a message is painted in.
type Side string

const (
	SideLeft  Side = "left"  // bot
	SideRight Side = "right" // user
)

// Body is the content of a message: exactly one of Text or ImageSrc is set.
type Body struct {
	Text     string `json:"text,omitempty"`
	ImageSrc string `json:"imageSrc,omitempty"`
}

// RenderInstruction describes how to paint one message.
type RenderInstruction struct {
	Index     int           `json:"index"` // position for DeleteAt, valid for this render only
	MessageID string        `json:"messageId"`
	Side      Side          `json:"side"`
	Sender    models.Sender `json:"sender"`
	Avatar    string        `json:"avatar"`
	Body      Body          `json:"body"`
	Timestamp string        `json:"timestamp"`
	Reactions []string      `json:"reactions"`
}

// Project maps the log to one instruction per message, in log order.
// It does not modify msgs and always returns the same output for the same
// input.
func Project(msgs []models.Message, active models.Persona) []RenderInstruction {
	out := make([]RenderInstruction, len(msgs))
	for i, m := range msgs {
		out[i] = project(i, m, active)
	}
	return out
}

func project(i int, m models.Message, active models.Persona) RenderInstruction {
	ri := RenderInstruction{
		Index:     i,
		MessageID: m.ID,
		Side:      SideLeft,
		Sender:    m.Sender,
		Avatar:    m.AvatarRef,
		Timestamp: m.CreatedAt,
		Reactions: make([]string, len(m.Reactions)),
	}
	copy(ri.Reactions, m.Reactions)

	if m.Sender == models.SenderUser {
		ri.Side = SideRight
	}
	if ri.Avatar == "" {
		if m.Sender == models.SenderUser {
			ri.Avatar = persona.DefaultUserAvatar
		} else {
			ri.Avatar = active.AvatarRef
		}
	}

	if m.Kind == models.KindImage {
		ri.Body.ImageSrc = m.ImageData
	} else {
		ri.Body.Text = m.Text
	}
	return ri
}
