package games

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/fanzone/go/internal/models"
)

// Cache TTLs by game status. Live rows are also invalidated on every patch.
const (
	LiveGameTTL      = 30 * time.Second
	ScheduledGameTTL = 10 * time.Minute
	FinalGameTTL     = 6 * time.Hour
)

// Store is the durable game store the cache sits in front of
type Store interface {
	GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error)
	ListGames(ctx context.Context, filter ListFilter) ([]models.Game, error)
	CreateGame(ctx context.Context, req CreateGameRequest) (*models.Game, error)
	PatchGame(ctx context.Context, id uuid.UUID, patch GamePatch) (*models.Game, error)
}

// RedisClient is the subset of redis.Cmdable the cache needs
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedRepository is a read-through Redis cache over a Store. Cache
// failures are logged and never surface to callers.
type CachedRepository struct {
	store  Store
	client RedisClient
	prefix string
}

// NewCachedRepository wraps store with a Redis read-through cache
func NewCachedRepository(store Store, client RedisClient) *CachedRepository {
	return &CachedRepository{
		store:  store,
		client: client,
		prefix: "fanzone:game:",
	}
}

func (c *CachedRepository) key(id uuid.UUID) string {
	return c.prefix + id.String()
}

// GetGame serves from Redis when possible and fills the cache on a miss
func (c *CachedRepository) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	switch {
	case err == nil:
		var game models.Game
		if err := json.Unmarshal(data, &game); err == nil {
			return &game, nil
		}
		log.Warn().Str("game_id", id.String()).Msg("discarding undecodable cached game")
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Str("game_id", id.String()).Msg("game cache read failed")
	}

	game, err := c.store.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	c.put(ctx, game)
	return game, nil
}

func (c *CachedRepository) ListGames(ctx context.Context, filter ListFilter) ([]models.Game, error) {
	return c.store.ListGames(ctx, filter)
}

func (c *CachedRepository) CreateGame(ctx context.Context, req CreateGameRequest) (*models.Game, error) {
	game, err := c.store.CreateGame(ctx, req)
	if err != nil {
		return nil, err
	}
	c.put(ctx, game)
	return game, nil
}

// PatchGame writes through to the store and then replaces the cached row
func (c *CachedRepository) PatchGame(ctx context.Context, id uuid.UUID, patch GamePatch) (*models.Game, error) {
	game, err := c.store.PatchGame(ctx, id, patch)
	if err != nil {
		// the write may have landed before the error surfaced
		c.invalidate(ctx, id)
		return nil, err
	}
	c.put(ctx, game)
	return game, nil
}

func (c *CachedRepository) put(ctx context.Context, game *models.Game) {
	data, err := json.Marshal(game)
	if err != nil {
		log.Warn().Err(err).Str("game_id", game.ID.String()).Msg("failed to encode game for cache")
		return
	}
	if err := c.client.Set(ctx, c.key(game.ID), data, TTLFor(game)).Err(); err != nil {
		log.Warn().Err(err).Str("game_id", game.ID.String()).Msg("game cache write failed")
	}
}

func (c *CachedRepository) invalidate(ctx context.Context, id uuid.UUID) {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		log.Warn().Err(err).Str("game_id", id.String()).Msg("game cache invalidation failed")
	}
}

// TTLFor picks the cache lifetime for a game based on its status
func TTLFor(game *models.Game) time.Duration {
	switch {
	case game.IsLive:
		return LiveGameTTL
	case game.IsFinal:
		return FinalGameTTL
	default:
		return ScheduledGameTTL
	}
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
