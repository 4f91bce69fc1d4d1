package outbox

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
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

type outboxRow struct {
	ID          uuid.UUID
	AggregateID uuid.UUID
	EventType   string
	Payload     pqtype.NullRawMessage
	CreatedAt   time.Time
	SentAt      sql.NullTime
}

type InsertEventParams struct {
	ID          uuid.UUID
	AggregateID uuid.UUID
	EventType   string
	Payload     pqtype.NullRawMessage
}

const insertEvent = `INSERT INTO live_outbox (id, aggregate_id, event_type, payload)
VALUES ($1, $2, $3, $4)`

func (q *Queries) InsertEvent(ctx context.Context, arg InsertEventParams) error {
	_, err := q.db.ExecContext(ctx, insertEvent, arg.ID, arg.AggregateID, arg.EventType, arg.Payload)
	return err
}

const fetchOutboxByID = `SELECT id, aggregate_id, event_type, payload, created_at, sent_at
FROM live_outbox WHERE id = $1 AND sent_at IS NULL`

func (q *Queries) FetchOutboxByID(ctx context.Context, id uuid.UUID) (outboxRow, error) {
	var r outboxRow
	err := q.db.QueryRowContext(ctx, fetchOutboxByID, id).Scan(
		&r.ID, &r.AggregateID, &r.EventType, &r.Payload, &r.CreatedAt, &r.SentAt,
	)
	return r, err
}

const fetchUnsentOutbox = `SELECT id, aggregate_id, event_type, payload, created_at, sent_at
FROM live_outbox WHERE sent_at IS NULL
ORDER BY created_at ASC
LIMIT $1`

func (q *Queries) FetchUnsentOutbox(ctx context.Context, limit int32) ([]outboxRow, error) {
	rows, err := q.db.QueryContext(ctx, fetchUnsentOutbox, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []outboxRow
	for rows.Next() {
		var r outboxRow
		if err := rows.Scan(&r.ID, &r.AggregateID, &r.EventType, &r.Payload, &r.CreatedAt, &r.SentAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const markOutboxSent = `UPDATE live_outbox SET sent_at = now() WHERE id = $1`

func (q *Queries) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, markOutboxSent, id)
	return err
}
