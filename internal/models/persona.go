package models

// Persona is a scripted bot identity the user can talk to.
type Persona struct {
	ID          string   `json:"id" yaml:"id"`
	DisplayName string   `json:"displayName" yaml:"name"`
	AvatarRef   string   `json:"avatarRef" yaml:"avatar"`
	Description string   `json:"description" yaml:"description"`
	ReplyPool   []string `json:"replyPool" yaml:"replies"`
}
