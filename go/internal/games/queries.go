package games

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

// Queries holds the SQL for the games table
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

type gameRow struct {
	ID           uuid.UUID
	Season       int32
	Week         int32
	Team1        string
	Team2        string
	Team1Score   int32
	Team2Score   int32
	Quarter      string
	IsLive       bool
	IsFinal      bool
	BallPosition int32
	LastPlay     string
	GameTime     sql.NullTime
	Location     sql.NullString
	StreamLink   sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const gameColumns = `id, season, week, team1, team2, team1_score, team2_score, quarter,
	is_live, is_final, ball_position, last_play, game_time, location, stream_link,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGame(row rowScanner) (gameRow, error) {
	var g gameRow
	err := row.Scan(
		&g.ID, &g.Season, &g.Week, &g.Team1, &g.Team2, &g.Team1Score, &g.Team2Score, &g.Quarter,
		&g.IsLive, &g.IsFinal, &g.BallPosition, &g.LastPlay, &g.GameTime, &g.Location, &g.StreamLink,
		&g.CreatedAt, &g.UpdatedAt,
	)
	return g, err
}

const getGame = `SELECT ` + gameColumns + ` FROM games WHERE id = $1`

func (q *Queries) GetGame(ctx context.Context, id uuid.UUID) (gameRow, error) {
	return scanGame(q.db.QueryRowContext(ctx, getGame, id))
}

type ListGamesParams struct {
	Season   sql.NullInt32
	Week     sql.NullInt32
	LiveOnly bool
}

const listGames = `SELECT ` + gameColumns + ` FROM games
WHERE ($1::int IS NULL OR season = $1)
  AND ($2::int IS NULL OR week = $2)
  AND (NOT $3::boolean OR is_live)
ORDER BY season DESC, week ASC, game_time ASC NULLS LAST, team1 ASC`

func (q *Queries) ListGames(ctx context.Context, arg ListGamesParams) ([]gameRow, error) {
	rows, err := q.db.QueryContext(ctx, listGames, arg.Season, arg.Week, arg.LiveOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []gameRow
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

type CreateGameParams struct {
	ID           uuid.UUID
	Season       int32
	Week         int32
	Team1        string
	Team2        string
	BallPosition int32
	GameTime     sql.NullTime
	Location     sql.NullString
	StreamLink   sql.NullString
}

const createGame = `INSERT INTO games (id, season, week, team1, team2, ball_position, game_time, location, stream_link)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + gameColumns

func (q *Queries) CreateGame(ctx context.Context, arg CreateGameParams) (gameRow, error) {
	return scanGame(q.db.QueryRowContext(ctx, createGame,
		arg.ID, arg.Season, arg.Week, arg.Team1, arg.Team2, arg.BallPosition,
		arg.GameTime, arg.Location, arg.StreamLink,
	))
}

type PatchGameParams struct {
	ID           uuid.UUID
	BallPosition sql.NullInt32
	LastPlay     sql.NullString
	Team1Score   sql.NullInt32
	Team2Score   sql.NullInt32
	Quarter      sql.NullString
	IsLive       sql.NullBool
	IsFinal      sql.NullBool
}

// Raising one of is_live/is_final lowers the other in the same statement.
const patchGame = `UPDATE games SET
	ball_position = COALESCE($2, ball_position),
	last_play     = COALESCE($3, last_play),
	team1_score   = COALESCE($4, team1_score),
	team2_score   = COALESCE($5, team2_score),
	quarter       = COALESCE($6, quarter),
	is_live  = CASE WHEN $7::boolean IS NOT NULL THEN $7::boolean WHEN $8::boolean THEN FALSE ELSE is_live END,
	is_final = CASE WHEN $8::boolean IS NOT NULL THEN $8::boolean WHEN $7::boolean THEN FALSE ELSE is_final END,
	updated_at = now()
WHERE id = $1
RETURNING ` + gameColumns

func (q *Queries) PatchGame(ctx context.Context, arg PatchGameParams) (gameRow, error) {
	return scanGame(q.db.QueryRowContext(ctx, patchGame,
		arg.ID, arg.BallPosition, arg.LastPlay, arg.Team1Score, arg.Team2Score,
		arg.Quarter, arg.IsLive, arg.IsFinal,
	))
}
