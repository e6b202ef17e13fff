package models

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a session's chat history.
type Message struct {
	ID        string    `firestore:"id" json:"id"`
	Role      string    `firestore:"role" json:"role"`
	Content   string    `firestore:"content" json:"content"`
	Encrypted bool      `firestore:"encrypted,omitempty" json:"encrypted,omitempty"`
	CreatedAt time.Time `firestore:"createdAt" json:"createdAt"`
	ExpiresAt time.Time `firestore:"expiresAt,omitempty" json:"expiresAt,omitempty"`
}
