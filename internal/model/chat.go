package model

import "time"

// ChatRole identifies who authored a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// String returns the string representation of the chat role.
func (r ChatRole) String() string {
	return string(r)
}

// IsValid reports whether the role is a known value.
func (r ChatRole) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ChatMessage is one turn in a security-agent conversation. Content is
// stored exactly as received; parsing into display blocks happens at the
// boundary, not here.
type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           ChatRole  `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
