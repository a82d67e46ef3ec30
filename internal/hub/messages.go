package hub

// Message types from client.
const (
	MsgTypeSubmitText    = "submit_text"
	MsgTypeSelectPersona = "select_persona"
	MsgTypeReact         = "react"
	MsgTypeDelete        = "delete"
	MsgTypeClear         = "clear"
	MsgTypePing          = "ping"
)

// Message types to client. Render and cue events use session.EventType.
const (
	MsgTypeError   = "error"
	MsgTypeWarning = "warning"
	MsgTypePong    = "pong"
)

// Error codes
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
	WarnPersistence      = "PERSISTENCE_UNAVAILABLE"
)

// BaseMessage is the envelope every inbound frame decodes into first.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type SubmitTextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type SelectPersonaMessage struct {
	Type      string `json:"type"`
	PersonaID string `json:"persona_id"`
}

type ReactMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type DeleteMessage struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// Server -> Client messages

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{Type: MsgTypeError, Code: code, Message: message}
}

func NewWarningMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{Type: MsgTypeWarning, Code: code, Message: message}
}
