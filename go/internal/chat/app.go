package chat

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mcdev12/fanzone/go/internal/apperrors"
	"github.com/mcdev12/fanzone/go/internal/models"
)

const (
	MaxMessageLength  = 500
	MaxUsernameLength = 32
	DefaultHistory    = 50
	MaxHistory        = 200
)

var tracer = otel.Tracer("github.com/mcdev12/fanzone/go/internal/chat")

// Store persists chat messages in append order
type Store interface {
	Append(ctx context.Context, msg models.ChatMessage) (*models.ChatMessage, error)
	Recent(ctx context.Context, gameID *uuid.UUID, limit int) ([]models.ChatMessage, error)
}

// App validates and records chat messages
type App struct {
	store Store
}

func NewApp(store Store) *App {
	return &App{store: store}
}

// Append trims and validates the post, then stores it durably.
func (a *App) Append(ctx context.Context, gameID *uuid.UUID, username, text string) (*models.ChatMessage, error) {
	ctx, span := tracer.Start(ctx, "chat.Append")
	defer span.End()

	username = strings.TrimSpace(username)
	text = strings.TrimSpace(text)

	if username == "" {
		return nil, apperrors.Invalid("username", "is required")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return nil, apperrors.Invalid("username", "must be at most 32 characters")
	}
	if text == "" {
		return nil, apperrors.Invalid("message", "must not be empty")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, apperrors.Invalid("message", "must be at most 500 characters")
	}

	msg, err := a.store.Append(ctx, models.ChatMessage{
		ID:       uuid.New(),
		GameID:   gameID,
		Username: username,
		Message:  text,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("chat.channel", channelID(gameID).String()))
	log.Debug().
		Str("message_id", msg.ID.String()).
		Str("channel", channelID(gameID).String()).
		Str("username", msg.Username).
		Msg("chat message appended")
	return msg, nil
}

// Recent returns the newest messages in a channel, oldest first.
func (a *App) Recent(ctx context.Context, gameID *uuid.UUID, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultHistory
	}
	if limit > MaxHistory {
		limit = MaxHistory
	}
	return a.store.Recent(ctx, gameID, limit)
}
