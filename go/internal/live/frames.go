package live

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/fanzone/go/internal/apperrors"
	"github.com/mcdev12/fanzone/go/internal/games"
	"github.com/mcdev12/fanzone/go/internal/models"
)

// FrameType is the "type" discriminator on every websocket frame
type FrameType string

const (
	FrameBallMove    FrameType = "ball_move"
	FrameBallCommit  FrameType = "ball_commit"
	FrameChatMessage FrameType = "chat_message"
	FrameGameUpdate  FrameType = "game_update"
	FrameSnapshot    FrameType = "snapshot"
	FrameError       FrameType = "error"
)

// Frame is the JSON envelope sent to subscribers. Only the fields relevant
// to Type are populated.
type Frame struct {
	Type   FrameType  `json:"type"`
	GameID *uuid.UUID `json:"gameId,omitempty"`

	BallPosition *int `json:"ballPosition,omitempty"`
	Persisted    bool `json:"persisted,omitempty"`

	Fields map[string]interface{} `json:"fields,omitempty"`

	ID        *uuid.UUID `json:"id,omitempty"`
	Username  string     `json:"username,omitempty"`
	Message   string     `json:"message,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`

	Game     *models.Game         `json:"game,omitempty"`
	Messages []models.ChatMessage `json:"messages,omitempty"`

	Error *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a rejected inbound frame. Text echoes a rejected chat
// post so the client can resubmit it.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Text      string `json:"text,omitempty"`
}

func gameRef(key uuid.UUID) *uuid.UUID {
	if key == GlobalChannel {
		return nil
	}
	id := key
	return &id
}

func BallMoveFrame(gameID uuid.UUID, position int) Frame {
	return Frame{Type: FrameBallMove, GameID: gameRef(gameID), BallPosition: &position}
}

func BallCommitFrame(gameID uuid.UUID, position int) Frame {
	return Frame{Type: FrameBallCommit, GameID: gameRef(gameID), BallPosition: &position, Persisted: true}
}

func GameUpdateFrame(gameID uuid.UUID, fields map[string]interface{}) Frame {
	return Frame{Type: FrameGameUpdate, GameID: gameRef(gameID), Fields: fields}
}

func ChatMessageFrame(msg *models.ChatMessage) Frame {
	id := msg.ID
	createdAt := msg.CreatedAt
	return Frame{
		Type:      FrameChatMessage,
		GameID:    msg.GameID,
		ID:        &id,
		Username:  msg.Username,
		Message:   msg.Message,
		CreatedAt: &createdAt,
	}
}

func SnapshotFrame(key uuid.UUID, game *models.Game, history []models.ChatMessage) Frame {
	return Frame{Type: FrameSnapshot, GameID: gameRef(key), Game: game, Messages: history}
}

// ErrorFrame reports err to the sender of a rejected frame.
func ErrorFrame(err error, text string) Frame {
	return Frame{
		Type: FrameError,
		Error: &ErrorBody{
			Code:      apperrors.Code(err),
			Message:   err.Error(),
			Retryable: apperrors.IsRetryable(err),
			Text:      text,
		},
	}
}

// Marshal encodes the frame once for fan-out
func (f Frame) Marshal() ([]byte, error) {
	return json.Marshal(f)
}

type inboundFrame struct {
	Type         FrameType       `json:"type"`
	BallPosition json.RawMessage `json:"ballPosition"`
	Fields       json.RawMessage `json:"fields"`
	Username     string          `json:"username"`
	Message      string          `json:"message"`
}

// ParseEvent decodes a client frame into an Event. Positions are rounded to
// the nearest integer; clamping happens in the coordinator.
func ParseEvent(data []byte) (Event, error) {
	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, apperrors.Invalid("frame", "malformed JSON")
	}

	switch in.Type {
	case FrameBallMove:
		pos, err := parsePosition(in.BallPosition)
		if err != nil {
			return nil, err
		}
		return PositionDrag{Position: pos}, nil
	case FrameBallCommit:
		pos, err := parsePosition(in.BallPosition)
		if err != nil {
			return nil, err
		}
		return PositionCommit{Position: pos}, nil
	case FrameGameUpdate:
		if len(in.Fields) == 0 {
			return nil, apperrors.Invalid("fields", "is required")
		}
		var patch games.GamePatch
		if err := json.Unmarshal(in.Fields, &patch); err != nil {
			return nil, apperrors.Invalid("fields", "malformed update")
		}
		return AdminEdit{Fields: patch}, nil
	case FrameChatMessage:
		return ChatPost{Username: in.Username, Text: in.Message}, nil
	case "":
		return nil, apperrors.Invalid("type", "is required")
	default:
		return nil, apperrors.Invalid("type", "unknown frame type "+string(in.Type))
	}
}

func parsePosition(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, apperrors.Invalid("ballPosition", "is required")
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, apperrors.Invalid("ballPosition", "must be a number")
	}
	// pin before converting so huge values cannot overflow int
	f = math.Max(math.Min(f, games.MaxBallPosition+1), games.MinBallPosition-1)
	return int(math.Round(f)), nil
}
