package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mcdev12/fanzone/go/internal/apperrors"
	"github.com/mcdev12/fanzone/go/internal/models"
	"github.com/mcdev12/fanzone/go/internal/outbox"
	"github.com/mcdev12/fanzone/go/internal/sqlutil"
)

// Repository is the Postgres-backed chat log
type Repository struct {
	db      *sql.DB
	queries *Queries
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, queries: NewQueries(db)}
}

type txQueries struct {
	chat   *Queries
	outbox *outbox.Queries
}

func newTxQueries(tx *sql.Tx) txQueries {
	return txQueries{chat: NewQueries(tx), outbox: outbox.NewQueries(tx)}
}

// Append stores msg and returns it with the database-assigned timestamp.
func (r *Repository) Append(ctx context.Context, msg models.ChatMessage) (*models.ChatMessage, error) {
	var stored *models.ChatMessage
	err := sqlutil.Run(ctx, r.db, newTxQueries, func(q txQueries) error {
		if err := q.chat.LockChannel(ctx, "chat:"+channelID(msg.GameID).String()); err != nil {
			return err
		}
		row, err := q.chat.InsertMessage(ctx, InsertMessageParams{
			ID:       msg.ID,
			GameID:   sqlutil.ToNullUUID(msg.GameID),
			Username: msg.Username,
			Message:  msg.Message,
		})
		if err != nil {
			return err
		}
		stored = rowToModel(row)

		evt, err := outbox.NewEvent(channelID(msg.GameID), outbox.EventChatMessagePosted,
			outbox.ChatMessagePostedPayload{Message: *stored})
		if err != nil {
			return err
		}
		return q.outbox.InsertEvent(ctx, evt)
	})
	if err != nil {
		var pqErr *pq.Error
		// 23503: the game id does not exist
		if errors.As(err, &pqErr) && pqErr.Code == "23503" && msg.GameID != nil {
			return nil, apperrors.NotFound("game", *msg.GameID)
		}
		return nil, apperrors.Persistence("append chat message", err)
	}
	return stored, nil
}

// Recent returns up to limit messages, oldest first.
func (r *Repository) Recent(ctx context.Context, gameID *uuid.UUID, limit int) ([]models.ChatMessage, error) {
	rows, err := r.queries.RecentMessages(ctx, sqlutil.ToNullUUID(gameID), int32(limit))
	if err != nil {
		return nil, apperrors.Persistence("list chat messages", fmt.Errorf("channel %s: %w", channelID(gameID), err))
	}
	out := make([]models.ChatMessage, len(rows))
	for i, row := range rows {
		out[i] = *rowToModel(row)
	}
	return out, nil
}

func channelID(gameID *uuid.UUID) uuid.UUID {
	if gameID == nil {
		return uuid.Nil
	}
	return *gameID
}

func rowToModel(row messageRow) *models.ChatMessage {
	return &models.ChatMessage{
		ID:        row.ID,
		GameID:    sqlutil.FromNullUUID(row.GameID),
		Username:  row.Username,
		Message:   row.Message,
		CreatedAt: row.CreatedAt,
	}
}
