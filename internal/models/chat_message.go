package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultChatHistory is the number of chat messages replayed to a new connection.
const DefaultChatHistory = 50

// ChatMessage is an immutable entry in the class chat log.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
