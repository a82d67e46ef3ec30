package models

import (
	"errors"
	"fmt"
)

// ErrInvalidDraft is returned when a draft does not have a valid shape.
var ErrInvalidDraft = errors.New("invalid draft")

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Valid reports whether s is one of the known senders.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderBot
}

// Kind identifies the payload carried by a message.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindText || k == KindImage
}

// Message is one entry of the conversation log. Only Reactions change
// after creation.
type Message struct {
	ID        string   `json:"id"`                  // ULID
	Sender    Sender   `json:"sender"`
	Kind      Kind     `json:"kind"`
	Text      string   `json:"text,omitempty"`      // kind=text only
	ImageData string   `json:"imageData,omitempty"` // data URI, kind=image only
	CreatedAt string   `json:"createdAt"`           // display-formatted
	AvatarRef string   `json:"avatarRef"`
	Reactions []string `json:"reactions"`
}

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	c := m
	c.Reactions = make([]string, len(m.Reactions))
	copy(c.Reactions, m.Reactions)
	return c
}

// Draft is an append request before metadata is stamped.
type Draft struct {
	Sender    Sender
	Kind      Kind
	Text      string
	ImageData string

	// AvatarRef overrides the avatar that would otherwise be resolved
	// for the sender at append time.
	AvatarRef string
}

// Validate checks the structural shape of the draft. Text content is not
// inspected beyond presence.
func (d Draft) Validate() error {
	if !d.Sender.Valid() {
		return fmt.Errorf("%w: unknown sender %q", ErrInvalidDraft, d.Sender)
	}
	switch d.Kind {
	case KindText:
		if d.Text == "" || d.ImageData != "" {
			return fmt.Errorf("%w: text message needs text and no image data", ErrInvalidDraft)
		}
	case KindImage:
		if d.ImageData == "" || d.Text != "" {
			return fmt.Errorf("%w: image message needs image data and no text", ErrInvalidDraft)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDraft, d.Kind)
	}
	return nil
}
