package games

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

// Repository is the Postgres-backed GameStore. Every write also records an
// outbox row in the same transaction.
type Repository struct {
	db      *sql.DB
	queries *Queries
}

// NewRepository creates a new games repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db:      db,
		queries: NewQueries(db),
	}
}

type txQueries struct {
	games  *Queries
	outbox *outbox.Queries
}

func newTxQueries(tx *sql.Tx) txQueries {
	return txQueries{games: NewQueries(tx), outbox: outbox.NewQueries(tx)}
}

// GetGame retrieves a game by ID
func (r *Repository) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	row, err := r.queries.GetGame(ctx, id)
	if err != nil {
		return nil, mapDBError("get game", id, err)
	}
	return rowToModel(row), nil
}

// ListGames returns games matching the filter
func (r *Repository) ListGames(ctx context.Context, filter ListFilter) ([]models.Game, error) {
	rows, err := r.queries.ListGames(ctx, ListGamesParams{
		Season:   sqlutil.ToSqlInt32(filter.Season),
		Week:     sqlutil.ToSqlInt32(filter.Week),
		LiveOnly: filter.LiveOnly,
	})
	if err != nil {
		return nil, apperrors.Persistence("list games", err)
	}

	out := make([]models.Game, len(rows))
	for i, row := range rows {
		out[i] = *rowToModel(row)
	}
	return out, nil
}

// CreateGame inserts a scheduled game at midfield
func (r *Repository) CreateGame(ctx context.Context, req CreateGameRequest) (*models.Game, error) {
	var game *models.Game
	err := sqlutil.Run(ctx, r.db, newTxQueries, func(q txQueries) error {
		row, err := q.games.CreateGame(ctx, CreateGameParams{
			ID:           uuid.New(),
			Season:       int32(req.Season),
			Week:         int32(req.Week),
			Team1:        req.Team1,
			Team2:        req.Team2,
			BallPosition: DefaultBallPosition,
			GameTime:     sqlutil.ToSqlTime(req.GameTime),
			Location:     sqlutil.ToSqlString(req.Location),
			StreamLink:   sqlutil.ToSqlString(req.StreamLink),
		})
		if err != nil {
			return err
		}
		game = rowToModel(row)

		evt, err := outbox.NewEvent(game.ID, outbox.EventGameCreated, outbox.GameUpdatedPayload{Game: *game})
		if err != nil {
			return err
		}
		return q.outbox.InsertEvent(ctx, evt)
	})
	if err != nil {
		return nil, mapDBError("create game", uuid.Nil, err)
	}
	return game, nil
}

// PatchGame applies a partial update and returns the full row as stored.
// Concurrent patches are last-write-wins by arrival at the database.
func (r *Repository) PatchGame(ctx context.Context, id uuid.UUID, patch GamePatch) (*models.Game, error) {
	var game *models.Game
	err := sqlutil.Run(ctx, r.db, newTxQueries, func(q txQueries) error {
		row, err := q.games.PatchGame(ctx, PatchGameParams{
			ID:           id,
			BallPosition: sqlutil.ToSqlInt32(patch.BallPosition),
			LastPlay:     sqlutil.ToSqlString(patch.LastPlay),
			Team1Score:   sqlutil.ToSqlInt32(patch.Team1Score),
			Team2Score:   sqlutil.ToSqlInt32(patch.Team2Score),
			Quarter:      sqlutil.ToSqlString(patch.Quarter),
			IsLive:       sqlutil.ToSqlBool(patch.IsLive),
			IsFinal:      sqlutil.ToSqlBool(patch.IsFinal),
		})
		if err != nil {
			return err
		}
		game = rowToModel(row)

		evt, err := outbox.NewEvent(id, outbox.EventGameUpdated, outbox.GameUpdatedPayload{
			Game:   *game,
			Fields: patch.Fields(),
		})
		if err != nil {
			return err
		}
		return q.outbox.InsertEvent(ctx, evt)
	})
	if err != nil {
		return nil, mapDBError("patch game", id, err)
	}
	return game, nil
}

// mapDBError folds driver errors into the application taxonomy.
func mapDBError(op string, id uuid.UUID, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound("game", id)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
		field := pqErr.Constraint
		if field == "" {
			field = pqErr.Column
		}
		return apperrors.Invalid(field, pqErr.Message)
	}
	return apperrors.Persistence(op, fmt.Errorf("game %s: %w", id, err))
}

func rowToModel(row gameRow) *models.Game {
	return &models.Game{
		ID:           row.ID,
		Season:       int(row.Season),
		Week:         int(row.Week),
		Team1:        row.Team1,
		Team2:        row.Team2,
		Team1Score:   int(row.Team1Score),
		Team2Score:   int(row.Team2Score),
		Quarter:      row.Quarter,
		IsLive:       row.IsLive,
		IsFinal:      row.IsFinal,
		BallPosition: int(row.BallPosition),
		LastPlay:     row.LastPlay,
		GameTime:     sqlutil.FromSqlTimePtr(row.GameTime),
		Location:     sqlutil.FromSqlStringPtr(row.Location),
		StreamLink:   sqlutil.FromSqlStringPtr(row.StreamLink),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}
