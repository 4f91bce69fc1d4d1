package chat

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

type messageRow struct {
	ID        uuid.UUID
	GameID    uuid.NullUUID
	Username  string
	Message   string
	CreatedAt time.Time
}

// Serialises appends per channel for the rest of the transaction.
const lockChannel = `SELECT pg_advisory_xact_lock(hashtext($1))`

func (q *Queries) LockChannel(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, lockChannel, key)
	return err
}

type InsertMessageParams struct {
	ID       uuid.UUID
	GameID   uuid.NullUUID
	Username string
	Message  string
}

// created_at is forced past the newest row in the channel so ordering by
// timestamp matches append order.
const insertMessage = `INSERT INTO chat_messages (id, game_id, username, message, created_at)
VALUES ($1, $2, $3, $4, GREATEST(
	clock_timestamp(),
	COALESCE(
		(SELECT max(created_at) FROM chat_messages WHERE game_id IS NOT DISTINCT FROM $2),
		'-infinity'::timestamptz
	) + interval '1 microsecond'
))
RETURNING id, game_id, username, message, created_at`

func (q *Queries) InsertMessage(ctx context.Context, arg InsertMessageParams) (messageRow, error) {
	var r messageRow
	err := q.db.QueryRowContext(ctx, insertMessage, arg.ID, arg.GameID, arg.Username, arg.Message).
		Scan(&r.ID, &r.GameID, &r.Username, &r.Message, &r.CreatedAt)
	return r, err
}

const recentMessages = `SELECT id, game_id, username, message, created_at FROM (
	SELECT id, game_id, username, message, created_at
	FROM chat_messages
	WHERE game_id IS NOT DISTINCT FROM $1
	ORDER BY created_at DESC
	LIMIT $2
) recent
ORDER BY created_at ASC`

func (q *Queries) RecentMessages(ctx context.Context, gameID uuid.NullUUID, limit int32) ([]messageRow, error) {
	rows, err := q.db.QueryContext(ctx, recentMessages, gameID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []messageRow
	for rows.Next() {
		var r messageRow
		if err := rows.Scan(&r.ID, &r.GameID, &r.Username, &r.Message, &r.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
