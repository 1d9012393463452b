package chat

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat entry. Content is sanitized
// before the message is built; a stored message is never rewritten.
type Message struct {
	ID       uuid.UUID `json:"id"`
	RoomID   RoomID    `json:"roomId"`
	Username string    `json:"username"`
	Content  string    `json:"content"`
	At       time.Time `json:"at"`
}

func NewMessage(roomID RoomID, username, content string, at time.Time) Message {
	return Message{
		ID:       uuid.New(),
		RoomID:   roomID,
		Username: username,
		Content:  content,
		At:       at,
	}
}
