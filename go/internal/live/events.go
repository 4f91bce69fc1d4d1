package live

import (
	"github.com/mcdev12/fanzone/go/internal/games"
	"github.com/mcdev12/fanzone/go/internal/models"
)

// Event is an inbound change request for a channel.
type Event interface {
	eventName() string
}

// PositionDrag is an in-flight position. It is broadcast but never stored.
type PositionDrag struct {
	Position int
}

// PositionCommit is the final position of a drag. It is stored once.
type PositionCommit struct {
	Position int
}

// AdminEdit changes score, last play, quarter or the live/final flags.
type AdminEdit struct {
	Fields games.GamePatch
}

// ChatPost appends a message to the channel's chat log.
type ChatPost struct {
	Username string
	Text     string
}

func (PositionDrag) eventName() string   { return "position_drag" }
func (PositionCommit) eventName() string { return "position_commit" }
func (AdminEdit) eventName() string      { return "admin_edit" }
func (ChatPost) eventName() string       { return "chat_post" }

// Outcome reports what an accepted event did.
type Outcome struct {
	// Position is the clamped position for drag and commit events.
	Position int
	// Persisted is true once the event's effect is durable.
	Persisted bool
	// Delivered counts local subscribers that were handed a frame.
	Delivered int
	Game      *models.Game
	Message   *models.ChatMessage
}
