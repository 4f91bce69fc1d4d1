package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/fanzone/go/internal/apperrors"
	"github.com/mcdev12/fanzone/go/internal/auth"
	"github.com/mcdev12/fanzone/go/internal/chat"
	"github.com/mcdev12/fanzone/go/internal/games"
	"github.com/mcdev12/fanzone/go/internal/live"
	"github.com/mcdev12/fanzone/go/internal/models"
)

// LiveService is the coordinator surface the REST routes use
type LiveService interface {
	Snapshot(ctx context.Context, gameID uuid.UUID) (*models.Game, error)
	Patch(ctx context.Context, gameID uuid.UUID, patch games.GamePatch, capability auth.Capability) (*models.Game, error)
	HandleEvent(ctx context.Context, gameID uuid.UUID, ev live.Event, capability auth.Capability) (live.Outcome, error)
}

// GameCatalog lists and schedules games
type GameCatalog interface {
	ListGames(ctx context.Context, filter games.ListFilter) ([]models.Game, error)
	ListWeek(ctx context.Context, season, week int) ([]models.Game, error)
	CurrentWeek(ctx context.Context, season *int) ([]models.Game, error)
	CreateGame(ctx context.Context, req games.CreateGameRequest) (*models.Game, error)
}

// ChatHistory reads the chat log
type ChatHistory interface {
	Recent(ctx context.Context, gameID *uuid.UUID, limit int) ([]models.ChatMessage, error)
}

type TokenVerifier interface {
	Verify(token string) (auth.Capability, error)
}

// Handler serves the REST API
type Handler struct {
	live     LiveService
	games    GameCatalog
	chat     ChatHistory
	verifier TokenVerifier
}

func NewHandler(liveService LiveService, catalog GameCatalog, history ChatHistory, verifier TokenVerifier) *Handler {
	return &Handler{
		live:     liveService,
		games:    catalog,
		chat:     history,
		verifier: verifier,
	}
}

// RegisterRoutes mounts the API under /api
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/games", func(r chi.Router) {
			r.Get("/", h.ListGames)
			r.Post("/", h.CreateGame)
			r.Get("/all", h.ListSeason)
			r.Get("/current", h.CurrentWeek)
			r.Get("/week/{week}", h.ListWeek)
			r.Get("/{gameID}", h.GetGame)
			r.Patch("/{gameID}", h.PatchGame)
		})
		r.Get("/chat", h.ListChat)
		r.Post("/chat", h.PostChat)
	})
}

func (h *Handler) capability(r *http.Request) (auth.Capability, error) {
	return h.verifier.Verify(auth.TokenFromRequest(r))
}

func gameIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "gameID"))
	if err != nil {
		return uuid.Nil, apperrors.Invalid("gameId", "must be a UUID")
	}
	return id, nil
}

func optionalInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperrors.Invalid(name, "must be an integer")
	}
	return &v, nil
}

// GetGame returns the live snapshot of a game
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	id, err := gameIDParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	game, err := h.live.Snapshot(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, game)
}

// PatchGame applies an admin change and returns the full game
func (h *Handler) PatchGame(w http.ResponseWriter, r *http.Request) {
	capability, err := h.capability(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	id, err := gameIDParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var patch games.GamePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondError(w, r, err)
		return
	}

	game, err := h.live.Patch(r.Context(), id, patch, capability)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, game)
}

// ListGames filters by ?season=, ?week= and ?live=true
func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	var (
		filter games.ListFilter
		err    error
	)
	if filter.Season, err = optionalInt(r, "season"); err != nil {
		respondError(w, r, err)
		return
	}
	if filter.Week, err = optionalInt(r, "week"); err != nil {
		respondError(w, r, err)
		return
	}
	filter.LiveOnly = r.URL.Query().Get("live") == "true"

	list, err := h.games.ListGames(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Game{}
	}
	respondJSON(w, http.StatusOK, list)
}

// ListSeason returns every game of ?season=, or of all seasons without it
func (h *Handler) ListSeason(w http.ResponseWriter, r *http.Request) {
	season, err := optionalInt(r, "season")
	if err != nil {
		respondError(w, r, err)
		return
	}
	list, err := h.games.ListGames(r.Context(), games.ListFilter{Season: season})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondGames(w, list)
}

// CurrentWeek returns the week in play for ?season=
func (h *Handler) CurrentWeek(w http.ResponseWriter, r *http.Request) {
	season, err := optionalInt(r, "season")
	if err != nil {
		respondError(w, r, err)
		return
	}
	list, err := h.games.CurrentWeek(r.Context(), season)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondGames(w, list)
}

func respondGames(w http.ResponseWriter, list []models.Game) {
	if list == nil {
		list = []models.Game{}
	}
	respondJSON(w, http.StatusOK, list)
}

// ListWeek returns one week of a season
func (h *Handler) ListWeek(w http.ResponseWriter, r *http.Request) {
	week, err := strconv.Atoi(chi.URLParam(r, "week"))
	if err != nil {
		respondError(w, r, apperrors.Invalid("week", "must be an integer"))
		return
	}
	season, err := optionalInt(r, "season")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var list []models.Game
	if season == nil {
		list, err = h.games.ListGames(r.Context(), games.ListFilter{Week: &week})
	} else {
		list, err = h.games.ListWeek(r.Context(), *season, week)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Game{}
	}
	respondJSON(w, http.StatusOK, list)
}

// CreateGame schedules a game. Admin only.
func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	capability, err := h.capability(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !capability.IsAuthenticated() {
		respondError(w, r, apperrors.ErrUnauthorized)
		return
	}
	if !capability.IsAdmin() {
		respondError(w, r, apperrors.ErrForbidden)
		return
	}

	var req games.CreateGameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	game, err := h.games.CreateGame(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, game)
}

func chatChannel(raw string) (uuid.UUID, error) {
	if raw == "" {
		return live.GlobalChannel, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.Invalid("gameId", "must be a UUID")
	}
	return id, nil
}

// ListChat returns recent messages, newest last. No gameId means global chat.
func (h *Handler) ListChat(w http.ResponseWriter, r *http.Request) {
	key, err := chatChannel(r.URL.Query().Get("gameId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	limit, err := optionalInt(r, "limit")
	if err != nil {
		respondError(w, r, err)
		return
	}
	n := chat.DefaultHistory
	if limit != nil {
		n = *limit
	}

	var gameID *uuid.UUID
	if key != live.GlobalChannel {
		gameID = &key
	}
	messages, err := h.chat.Recent(r.Context(), gameID, n)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	respondJSON(w, http.StatusOK, messages)
}

type postChatRequest struct {
	GameID   string `json:"gameId,omitempty"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message"`
}

// PostChat appends a message and fans it out to live subscribers
func (h *Handler) PostChat(w http.ResponseWriter, r *http.Request) {
	capability, err := h.capability(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req postChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	key, err := chatChannel(req.GameID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out, err := h.live.HandleEvent(r.Context(), key, live.ChatPost{Username: req.Username, Text: req.Message}, capability)
	if err != nil {
		respondError(w, r, err)
		return
	}

	log.Debug().
		Str("channel", key.String()).
		Str("user_id", capability.UserID).
		Int("delivered", out.Delivered).
		Msg("chat message posted over REST")
	respondJSON(w, http.StatusCreated, out.Message)
}
