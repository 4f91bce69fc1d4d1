package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/fanzone/go/internal/models"
)

const (
	EventGameCreated       = "game.created"
	EventGameUpdated       = "game.updated"
	EventChatMessagePosted = "chat.message_posted"
)

// Event is an outbox row as seen by the relay
type Event struct {
	ID          uuid.UUID       `json:"id"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	EventType   string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	SentAt      *time.Time      `json:"sent_at,omitempty"`
}

// GameUpdatedPayload is stored for game.created and game.updated
type GameUpdatedPayload struct {
	Game   models.Game `json:"game"`
	Fields []string    `json:"fields,omitempty"`
}

// ChatMessagePostedPayload is stored for chat.message_posted
type ChatMessagePostedPayload struct {
	Message models.ChatMessage `json:"message"`
}

// NewEvent marshals payload into insert params for a fresh outbox row.
// The global chat channel uses uuid.Nil as its aggregate id.
func NewEvent(aggregateID uuid.UUID, eventType string, payload interface{}) (InsertEventParams, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return InsertEventParams{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return InsertEventParams{
		ID:          uuid.New(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     pqtype.NullRawMessage{RawMessage: data, Valid: true},
	}, nil
}
