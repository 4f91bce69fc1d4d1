// Package testkit holds in-memory stand-ins for the Postgres-backed stores
// and a recording subscriber for exercising fan-out.
package testkit

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/fanzone/go/internal/apperrors"
	"github.com/mcdev12/fanzone/go/internal/games"
	"github.com/mcdev12/fanzone/go/internal/models"
)

// GameStore is an in-memory games.Store with failure injection.
type GameStore struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	games     map[uuid.UUID]models.Game
	patchErrs []error
	getErrs   []error
	patches   int
	gets      int
}

func NewGameStore(clock clockwork.Clock) *GameStore {
	return &GameStore{
		clock: clock,
		games: make(map[uuid.UUID]models.Game),
	}
}

// AddGame stores a live game at midfield and returns it
func (s *GameStore) AddGame(team1, team2 string) models.Game {
	now := s.clock.Now()
	g := models.Game{
		ID:           uuid.New(),
		Season:       2025,
		Week:         1,
		Team1:        team1,
		Team2:        team2,
		Quarter:      "Q1",
		IsLive:       true,
		BallPosition: games.DefaultBallPosition,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.mu.Lock()
	s.games[g.ID] = g
	s.mu.Unlock()
	return g
}

// FailNextPatch queues err for the next PatchGame call.
func (s *GameStore) FailNextPatch(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patchErrs = append(s.patchErrs, err)
}

// FailNextGet queues err for the next GetGame call.
func (s *GameStore) FailNextGet(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErrs = append(s.getErrs, err)
}

// Patches returns how many PatchGame calls reached the store, failed ones included.
func (s *GameStore) Patches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patches
}

// Gets returns how many GetGame calls reached the store.
func (s *GameStore) Gets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

// Durable returns the stored row without counting as a read.
func (s *GameStore) Durable(id uuid.UUID) models.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.games[id]
}

func (s *GameStore) GetGame(_ context.Context, id uuid.UUID) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if len(s.getErrs) > 0 {
		err := s.getErrs[0]
		s.getErrs = s.getErrs[1:]
		return nil, err
	}
	g, ok := s.games[id]
	if !ok {
		return nil, apperrors.NotFound("game", id)
	}
	return &g, nil
}

func (s *GameStore) ListGames(_ context.Context, filter games.ListFilter) ([]models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Game
	for _, g := range s.games {
		if filter.Season != nil && g.Season != *filter.Season {
			continue
		}
		if filter.Week != nil && g.Week != *filter.Week {
			continue
		}
		if filter.LiveOnly && !g.IsLive {
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Week != out[j].Week {
			return out[i].Week < out[j].Week
		}
		return out[i].Team1 < out[j].Team1
	})
	return out, nil
}

func (s *GameStore) CreateGame(_ context.Context, req games.CreateGameRequest) (*models.Game, error) {
	now := s.clock.Now()
	g := models.Game{
		ID:           uuid.New(),
		Season:       req.Season,
		Week:         req.Week,
		Team1:        req.Team1,
		Team2:        req.Team2,
		BallPosition: games.DefaultBallPosition,
		GameTime:     req.GameTime,
		Location:     req.Location,
		StreamLink:   req.StreamLink,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.mu.Lock()
	s.games[g.ID] = g
	s.mu.Unlock()
	return &g, nil
}

func (s *GameStore) PatchGame(_ context.Context, id uuid.UUID, p games.GamePatch) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches++
	if len(s.patchErrs) > 0 {
		err := s.patchErrs[0]
		s.patchErrs = s.patchErrs[1:]
		return nil, err
	}
	g, ok := s.games[id]
	if !ok {
		return nil, apperrors.NotFound("game", id)
	}
	if p.BallPosition != nil {
		g.BallPosition = *p.BallPosition
	}
	if p.LastPlay != nil {
		g.LastPlay = *p.LastPlay
	}
	if p.Team1Score != nil {
		g.Team1Score = *p.Team1Score
	}
	if p.Team2Score != nil {
		g.Team2Score = *p.Team2Score
	}
	if p.Quarter != nil {
		g.Quarter = *p.Quarter
	}
	if p.IsLive != nil {
		g.IsLive = *p.IsLive
		if g.IsLive {
			g.IsFinal = false
		}
	}
	if p.IsFinal != nil {
		g.IsFinal = *p.IsFinal
		if g.IsFinal {
			g.IsLive = false
		}
	}
	g.UpdatedAt = s.clock.Now()
	s.games[id] = g
	return &g, nil
}
