package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcdev12/fanzone/go/internal/apperrors"
	"github.com/mcdev12/fanzone/go/internal/auth"
	"github.com/mcdev12/fanzone/go/internal/games"
	"github.com/mcdev12/fanzone/go/internal/models"
)

var tracer = otel.Tracer("github.com/mcdev12/fanzone/go/internal/live")

// GameStore is the durable game record
type GameStore interface {
	GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error)
	PatchGame(ctx context.Context, id uuid.UUID, patch games.GamePatch) (*models.Game, error)
}

// ChatLog is the append-only message log
type ChatLog interface {
	Append(ctx context.Context, gameID *uuid.UUID, username, text string) (*models.ChatMessage, error)
	Recent(ctx context.Context, gameID *uuid.UUID, limit int) ([]models.ChatMessage, error)
}

// Relay forwards encoded frames to coordinators in other processes.
type Relay interface {
	Publish(ctx context.Context, key uuid.UUID, frame []byte) error
}

// session is the hot state for one channel. It exists while the channel
// has subscribers or an event in flight.
type session struct {
	key uuid.UUID
	mu  sync.Mutex

	// guarded by Coordinator.mu
	refs int

	loaded    bool
	hot       int
	persisted int
}

// Coordinator classifies inbound events, keeps hot state per game and
// decides what is persisted before fan-out.
type Coordinator struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*session

	store       GameStore
	chat        ChatLog
	registry    *Registry
	relay       Relay
	historySize int
}

type Option func(*Coordinator)

// WithRelay mirrors every broadcast to other instances.
func WithRelay(r Relay) Option {
	return func(c *Coordinator) { c.relay = r }
}

// WithHistorySize sets how many chat messages a joining subscriber receives.
func WithHistorySize(n int) Option {
	return func(c *Coordinator) { c.historySize = n }
}

func NewCoordinator(store GameStore, chat ChatLog, registry *Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		sessions:    make(map[uuid.UUID]*session),
		store:       store,
		chat:        chat,
		registry:    registry,
		historySize: 50,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// acquire pins the session for key and takes its lock. With create false it
// returns nil when no session exists.
func (c *Coordinator) acquire(key uuid.UUID, create bool) *session {
	c.mu.Lock()
	s, ok := c.sessions[key]
	if !ok {
		if !create {
			c.mu.Unlock()
			return nil
		}
		s = &session{key: key}
		c.sessions[key] = s
	}
	s.refs++
	c.mu.Unlock()

	s.mu.Lock()
	return s
}

func (c *Coordinator) release(s *session) {
	s.mu.Unlock()

	c.mu.Lock()
	s.refs--
	c.teardownLocked(s)
	c.mu.Unlock()
}

// teardownLocked drops the session once nothing references it. Hot state is
// discarded; the store is authoritative from here on.
func (c *Coordinator) teardownLocked(s *session) {
	if s.refs > 0 || c.registry.Count(s.key) > 0 || c.sessions[s.key] != s {
		return
	}
	delete(c.sessions, s.key)
	if s.loaded && s.hot != s.persisted {
		log.Debug().
			Str("game_id", s.key.String()).
			Int("discarded_position", s.hot).
			Int("persisted_position", s.persisted).
			Msg("live session torn down with uncommitted drag")
	}
}

func (c *Coordinator) ensureLoaded(ctx context.Context, s *session) error {
	if s.loaded || s.key == GlobalChannel {
		return nil
	}
	game, err := c.store.GetGame(ctx, s.key)
	if err != nil {
		return err
	}
	s.hot, s.persisted, s.loaded = game.BallPosition, game.BallPosition, true
	return nil
}

func (c *Coordinator) broadcast(ctx context.Context, key uuid.UUID, frame Frame, exclude Subscriber) int {
	data, err := frame.Marshal()
	if err != nil {
		log.Error().Err(err).Str("frame_type", string(frame.Type)).Msg("failed to marshal frame")
		return 0
	}
	delivered := c.registry.BroadcastRaw(key, data, exclude)
	if c.relay != nil {
		if err := c.relay.Publish(ctx, key, data); err != nil {
			log.Warn().Err(err).Str("channel", key.String()).Msg("failed to relay frame")
		}
	}
	return delivered
}

// HandleEvent applies ev on behalf of a caller that is not a subscriber.
func (c *Coordinator) HandleEvent(ctx context.Context, gameID uuid.UUID, ev Event, capability auth.Capability) (Outcome, error) {
	return c.HandleFrom(ctx, gameID, ev, capability, nil)
}

// HandleFrom applies ev sent by sender. Drags are not echoed back to sender.
func (c *Coordinator) HandleFrom(ctx context.Context, gameID uuid.UUID, ev Event, capability auth.Capability, sender Subscriber) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "live.HandleEvent", trace.WithAttributes(
		attribute.String("game.id", gameID.String()),
		attribute.String("live.event", ev.eventName()),
	))
	defer span.End()

	if err := authorize(gameID, ev, capability); err != nil {
		return Outcome{}, err
	}

	s := c.acquire(gameID, true)
	defer c.release(s)

	if err := c.ensureLoaded(ctx, s); err != nil {
		span.RecordError(err)
		return Outcome{}, err
	}

	var (
		out Outcome
		err error
	)
	switch e := ev.(type) {
	case PositionDrag:
		out = c.drag(ctx, s, e, sender)
	case PositionCommit:
		out, err = c.commit(ctx, s, e, sender)
	case AdminEdit:
		out, err = c.edit(ctx, s, e, sender)
	case ChatPost:
		out, err = c.post(ctx, s, e, capability)
	default:
		err = apperrors.Invalid("event", fmt.Sprintf("unsupported event %T", ev))
	}
	if err != nil {
		span.RecordError(err)
		log.Warn().
			Err(err).
			Str("game_id", gameID.String()).
			Str("event", ev.eventName()).
			Str("user_id", capability.UserID).
			Msg("live event rejected")
	}
	return out, err
}

func authorize(key uuid.UUID, ev Event, capability auth.Capability) error {
	switch ev.(type) {
	case PositionDrag, PositionCommit, AdminEdit:
		if key == GlobalChannel {
			return apperrors.Invalid("gameId", "game updates need a game channel")
		}
		if !capability.IsAuthenticated() {
			return fmt.Errorf("%s: %w", ev.eventName(), apperrors.ErrUnauthorized)
		}
		if !capability.IsAdmin() {
			return fmt.Errorf("%s: %w", ev.eventName(), apperrors.ErrForbidden)
		}
	case ChatPost:
		if !capability.IsAuthenticated() {
			return fmt.Errorf("%s: %w", ev.eventName(), apperrors.ErrUnauthorized)
		}
	}
	return nil
}

func (c *Coordinator) drag(ctx context.Context, s *session, e PositionDrag, sender Subscriber) Outcome {
	pos := games.ClampPosition(e.Position)
	s.hot = pos
	delivered := c.broadcast(ctx, s.key, BallMoveFrame(s.key, pos), sender)
	return Outcome{Position: pos, Delivered: delivered}
}

func (c *Coordinator) commit(ctx context.Context, s *session, e PositionCommit, sender Subscriber) (Outcome, error) {
	pos := games.ClampPosition(e.Position)

	if pos == s.persisted {
		out := Outcome{Position: pos, Persisted: true}
		if s.hot != pos {
			s.hot = pos
			out.Delivered = c.broadcast(ctx, s.key, BallCommitFrame(s.key, pos), nil)
		}
		return out, nil
	}

	game, err := c.store.PatchGame(ctx, s.key, games.GamePatch{BallPosition: &pos})
	if err != nil {
		c.revert(ctx, s, sender)
		return Outcome{Position: pos}, apperrors.Persistence("commit ball position", err)
	}

	s.persisted, s.hot = game.BallPosition, game.BallPosition
	delivered := c.broadcast(ctx, s.key, BallCommitFrame(s.key, game.BallPosition), nil)

	log.Info().
		Str("game_id", s.key.String()).
		Int("ball_position", game.BallPosition).
		Int("subscribers", delivered).
		Msg("ball position committed")
	return Outcome{Position: game.BallPosition, Persisted: true, Delivered: delivered, Game: game}, nil
}

// revert re-asserts the last persisted position to viewers who saw drags
// toward a value that failed to persist. The sender keeps its own view and
// only gets the error, so it can retry.
func (c *Coordinator) revert(ctx context.Context, s *session, sender Subscriber) {
	if s.hot == s.persisted {
		return
	}
	s.hot = s.persisted
	c.broadcast(ctx, s.key, BallCommitFrame(s.key, s.persisted), sender)
}

func (c *Coordinator) edit(ctx context.Context, s *session, e AdminEdit, sender Subscriber) (Outcome, error) {
	patch := e.Fields.Clamped()
	if err := patch.Validate(); err != nil {
		return Outcome{}, err
	}

	game, err := c.store.PatchGame(ctx, s.key, patch)
	if err != nil {
		if patch.BallPosition != nil {
			c.revert(ctx, s, sender)
		}
		return Outcome{}, apperrors.Persistence("apply game update", err)
	}

	dragging := s.hot != s.persisted
	s.persisted = game.BallPosition
	if patch.BallPosition != nil || !dragging {
		s.hot = game.BallPosition
	}
	delivered := c.broadcast(ctx, s.key, GameUpdateFrame(s.key, appliedFields(patch, game)), nil)

	log.Info().
		Str("game_id", s.key.String()).
		Strs("fields", patch.Fields()).
		Msg("game updated")
	return Outcome{Position: s.hot, Persisted: true, Delivered: delivered, Game: game}, nil
}

func appliedFields(patch games.GamePatch, game *models.Game) map[string]interface{} {
	fields := make(map[string]interface{})
	for _, name := range patch.Fields() {
		switch name {
		case "ballPosition":
			fields[name] = game.BallPosition
		case "lastPlay":
			fields[name] = game.LastPlay
		case "team1Score":
			fields[name] = game.Team1Score
		case "team2Score":
			fields[name] = game.Team2Score
		case "quarter":
			fields[name] = game.Quarter
		case "isLive":
			fields[name] = game.IsLive
		case "isFinal":
			fields[name] = game.IsFinal
		}
	}
	return fields
}

// post stores the message before anyone is told about it.
func (c *Coordinator) post(ctx context.Context, s *session, e ChatPost, capability auth.Capability) (Outcome, error) {
	username := e.Username
	if capability.Username != "" {
		username = capability.Username
	}

	msg, err := c.chat.Append(ctx, gameRef(s.key), username, e.Text)
	if err != nil {
		return Outcome{}, apperrors.Persistence("append chat message", err)
	}
	delivered := c.broadcast(ctx, s.key, ChatMessageFrame(msg), nil)
	return Outcome{Persisted: true, Delivered: delivered, Message: msg}, nil
}

// Snapshot returns the durable row with the hot ball position merged in
// while a live session exists.
func (c *Coordinator) Snapshot(ctx context.Context, gameID uuid.UUID) (*models.Game, error) {
	ctx, span := tracer.Start(ctx, "live.Snapshot", trace.WithAttributes(
		attribute.String("game.id", gameID.String()),
	))
	defer span.End()

	game, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if s := c.acquire(gameID, false); s != nil {
		if s.loaded {
			game.BallPosition = s.hot
		}
		c.release(s)
	}
	return game, nil
}

// Join delivers a snapshot to sub and then subscribes it, so no broadcast
// can reach sub ahead of its snapshot.
func (c *Coordinator) Join(ctx context.Context, key uuid.UUID, sub Subscriber) error {
	s := c.acquire(key, true)
	defer c.release(s)

	var game *models.Game
	if key != GlobalChannel {
		g, err := c.store.GetGame(ctx, key)
		if err != nil {
			return err
		}
		if !s.loaded {
			s.hot, s.persisted, s.loaded = g.BallPosition, g.BallPosition, true
		}
		g.BallPosition = s.hot
		game = g
	}

	history, err := c.chat.Recent(ctx, gameRef(key), c.historySize)
	if err != nil {
		log.Warn().Err(err).Str("channel", key.String()).Msg("chat history unavailable for snapshot")
		history = nil
	}

	data, err := SnapshotFrame(key, game, history).Marshal()
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if !sub.Deliver(data) {
		return &apperrors.TransportError{ConnectionID: sub.ID(), Err: errors.New("send queue full before snapshot")}
	}
	c.registry.Subscribe(key, sub)
	return nil
}

// Leave unsubscribes sub; the last subscriber out tears the session down.
// Calling Leave twice is harmless.
func (c *Coordinator) Leave(key uuid.UUID, sub Subscriber) {
	c.registry.Unsubscribe(key, sub)

	c.mu.Lock()
	if s, ok := c.sessions[key]; ok {
		c.teardownLocked(s)
	}
	c.mu.Unlock()
}

// Patch is the REST path for game changes. A position-only patch is a
// commit; anything else is an admin edit.
func (c *Coordinator) Patch(ctx context.Context, gameID uuid.UUID, patch games.GamePatch, capability auth.Capability) (*models.Game, error) {
	if patch.PositionOnly() {
		out, err := c.HandleEvent(ctx, gameID, PositionCommit{Position: *patch.BallPosition}, capability)
		if err != nil {
			return nil, err
		}
		if out.Game != nil {
			return out.Game, nil
		}
		return c.Snapshot(ctx, gameID)
	}

	out, err := c.HandleEvent(ctx, gameID, AdminEdit{Fields: patch}, capability)
	if err != nil {
		return nil, err
	}
	return out.Game, nil
}

// ApplyRemote takes a frame broadcast by another instance, folds it into
// local hot state and hands it to local subscribers.
func (c *Coordinator) ApplyRemote(key uuid.UUID, data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		log.Warn().Err(err).Str("channel", key.String()).Msg("dropping undecodable relayed frame")
		return
	}

	s := c.acquire(key, false)
	if s == nil {
		return
	}
	defer c.release(s)

	if s.loaded {
		switch f.Type {
		case FrameBallMove:
			if f.BallPosition != nil {
				s.hot = *f.BallPosition
			}
		case FrameBallCommit:
			if f.BallPosition != nil {
				s.hot, s.persisted = *f.BallPosition, *f.BallPosition
			}
		case FrameGameUpdate:
			if v, ok := f.Fields["ballPosition"].(float64); ok {
				s.hot, s.persisted = int(v), int(v)
			}
		}
	}
	c.registry.BroadcastRaw(key, data, nil)
}

// ActiveSessions returns the number of channels holding hot state
func (c *Coordinator) ActiveSessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Stats reports subscriber counts per channel
func (c *Coordinator) Stats() Stats {
	return c.registry.Stats()
}
