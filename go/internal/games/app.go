package games

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mcdev12/fanzone/go/internal/models"
)

var tracer = otel.Tracer("github.com/mcdev12/fanzone/go/internal/games")

// App handles game reads and scheduling. Live mutations go through the
// live coordinator so that subscribers see them.
type App struct {
	store Store
}

// NewApp creates a new games App
func NewApp(store Store) *App {
	return &App{store: store}
}

// GetGame retrieves the durable row for a game
func (a *App) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	ctx, span := tracer.Start(ctx, "games.GetGame")
	defer span.End()
	span.SetAttributes(attribute.String("game.id", id.String()))

	game, err := a.store.GetGame(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return game, nil
}

// ListGames lists games for a season and/or week
func (a *App) ListGames(ctx context.Context, filter ListFilter) ([]models.Game, error) {
	ctx, span := tracer.Start(ctx, "games.ListGames")
	defer span.End()

	list, err := a.store.ListGames(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	span.SetAttributes(attribute.Int("games.count", len(list)))
	return list, nil
}

// ListWeek lists a single week of a season
func (a *App) ListWeek(ctx context.Context, season, week int) ([]models.Game, error) {
	return a.ListGames(ctx, ListFilter{Season: &season, Week: &week})
}

// CreateGame validates and schedules a new game
func (a *App) CreateGame(ctx context.Context, req CreateGameRequest) (*models.Game, error) {
	ctx, span := tracer.Start(ctx, "games.CreateGame")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	game, err := a.store.CreateGame(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	log.Info().
		Str("game_id", game.ID.String()).
		Int("season", game.Season).
		Int("week", game.Week).
		Str("matchup", game.Team1+" vs "+game.Team2).
		Msg("game scheduled")
	return game, nil
}

// CurrentWeek returns every game in the week being played: the earliest week
// with a live game, or the latest scheduled week when nothing is live.
func (a *App) CurrentWeek(ctx context.Context, season *int) ([]models.Game, error) {
	list, err := a.ListGames(ctx, ListFilter{Season: season})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}
	if season == nil {
		latest := list[0].Season
		for _, g := range list {
			if g.Season > latest {
				latest = g.Season
			}
		}
		list = filterGames(list, func(g models.Game) bool { return g.Season == latest })
	}

	week, found := 0, false
	for _, g := range list {
		if g.IsLive && (!found || g.Week < week) {
			week, found = g.Week, true
		}
	}
	if !found {
		for _, g := range list {
			if g.Week > week {
				week = g.Week
			}
		}
	}

	return filterGames(list, func(g models.Game) bool { return g.Week == week }), nil
}

func filterGames(list []models.Game, keep func(models.Game) bool) []models.Game {
	out := make([]models.Game, 0, len(list))
	for _, g := range list {
		if keep(g) {
			out = append(out, g)
		}
	}
	return out
}
