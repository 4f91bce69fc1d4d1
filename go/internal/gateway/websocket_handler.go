package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/fanzone/go/internal/apperrors"
	"github.com/mcdev12/fanzone/go/internal/auth"
	"github.com/mcdev12/fanzone/go/internal/live"
)

// TokenVerifier turns a bearer token into a capability
type TokenVerifier interface {
	Verify(token string) (auth.Capability, error)
}

// WebSocketHandler handles WebSocket upgrade requests for game and chat channels
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	verifier          TokenVerifier
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, verifier TokenVerifier) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		verifier:          verifier,
	}
}

// HandleGameConnection handles WebSocket connections for a specific game
func (h *WebSocketHandler) HandleGameConnection(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(chi.URLParam(r, "gameID"))
	if err != nil {
		http.Error(w, "invalid game id format", http.StatusBadRequest)
		return
	}
	h.serve(w, r, gameID)
}

// HandleChatConnection handles WebSocket connections to the global chat channel
func (h *WebSocketHandler) HandleChatConnection(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, live.GlobalChannel)
}

func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, key uuid.UUID) {
	capability, err := h.verifier.Verify(auth.TokenFromRequest(r))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	// unknown games are rejected before the upgrade so clients get a status code
	if key != live.GlobalChannel {
		if _, err := h.connectionManager.coordinator.Snapshot(r.Context(), key); err != nil {
			http.Error(w, http.StatusText(apperrors.HTTPStatus(err)), apperrors.HTTPStatus(err))
			return
		}
	}

	if err := h.connectionManager.UpgradeConnection(w, r, key, capability); err != nil {
		// the upgrader has already written a response
		log.Error().
			Err(err).
			Str("channel", key.String()).
			Str("user_id", capability.UserID).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers WebSocket routes on r
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/games/{gameID}", h.HandleGameConnection)
	r.Get("/ws/chat", h.HandleChatConnection)
	r.Get("/ws/stats", h.HandleConnectionStats)
}
