package view

import (
	"fmt"

	"github.com/eldtechnologies/chatsim/internal/models"
)

// Header shows the active persona above the conversation.
type Header struct {
	PersonaID   string `json:"personaId"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	Description string `json:"description"`
}

// Typing is the "<name> is typing..." indicator.
type Typing struct {
	PersonaID string `json:"personaId"`
	Text      string `json:"text"`
}

// Screen is a full render frame for the presentation layer.
type Screen struct {
	Version  uint64              `json:"version"`
	Theme    string              `json:"theme"`
	Header   Header              `json:"header"`
	Typing   *Typing             `json:"typing,omitempty"`
	Messages []RenderInstruction `json:"messages"`
}

// ScreenInput gathers the state a frame is derived from.
type ScreenInput struct {
	Version  uint64
	Theme    string
	Active   models.Persona
	Typing   *models.Persona // persona with a pending reply, if any
	Messages []models.Message
}

// Render builds a complete frame from in.
func Render(in ScreenInput) Screen {
	s := Screen{
		Version: in.Version,
		Theme:   in.Theme,
		Header: Header{
			PersonaID:   in.Active.ID,
			Name:        in.Active.DisplayName,
			Avatar:      in.Active.AvatarRef,
			Description: in.Active.Description,
		},
		Messages: Project(in.Messages, in.Active),
	}
	if in.Typing != nil {
		s.Typing = &Typing{
			PersonaID: in.Typing.ID,
			Text:      fmt.Sprintf("%s is typing...", in.Typing.DisplayName),
		}
	}
	return s
}
