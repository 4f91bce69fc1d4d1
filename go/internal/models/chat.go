package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is an immutable entry in a game's chat log.
// A nil GameID places the message in the global channel.
type ChatMessage struct {
	ID        uuid.UUID  `json:"id"`
	GameID    *uuid.UUID `json:"gameId,omitempty"`
	Username  string     `json:"username"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"createdAt"`
}
