package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/fanzone/go/internal/auth"
	"github.com/mcdev12/fanzone/go/internal/chat"
	"github.com/mcdev12/fanzone/go/internal/games"
	"github.com/mcdev12/fanzone/go/internal/gateway"
	"github.com/mcdev12/fanzone/go/internal/httpapi"
	"github.com/mcdev12/fanzone/go/internal/live"
)

type Services struct {
	Coordinator *live.Coordinator
	Connections *gateway.ConnectionManager
	WebSockets  *gateway.WebSocketHandler
	API         *httpapi.Handler

	closers []func() error
}

// Close releases external connections in reverse order of creation
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Error().Err(err).Msg("failed to close service dependency")
		}
	}
}

func setupServices(ctx context.Context, cfg *Config, database *sql.DB) (*Services, error) {
	// Database layer → Repository layer → App layer → transport
	clock := clockwork.NewRealClock()
	services := &Services{}

	// Games, optionally behind the Redis read cache
	var gameStore games.Store = games.NewRepository(database)
	if cfg.RedisURL != "" {
		client, err := games.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		services.closers = append(services.closers, client.Close)
		gameStore = games.NewCachedRepository(gameStore, client)
		log.Info().Msg("game read cache enabled")
	}
	gamesApp := games.NewApp(gameStore)

	// Chat
	chatApp := chat.NewApp(chat.NewRepository(database))

	// Auth
	verifier, err := auth.NewVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer, clock)
	if err != nil {
		services.Close()
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}

	// Live coordination
	opts := []live.Option{live.WithHistorySize(cfg.ChatHistory)}
	var relay *gateway.NATSRelay
	if cfg.RelayEnabled {
		relay, err = gateway.NewNATSRelay(cfg.Relay)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.closers = append(services.closers, relay.Close)
		opts = append(opts, live.WithRelay(relay))
	}
	coordinator := live.NewCoordinator(gameStore, chatApp, live.NewRegistry(), opts...)
	if relay != nil {
		if err := relay.Subscribe(coordinator.ApplyRemote); err != nil {
			services.Close()
			return nil, err
		}
	}

	connections := gateway.NewConnectionManager(cfg.WS, coordinator, clock)

	services.Coordinator = coordinator
	services.Connections = connections
	services.WebSockets = gateway.NewWebSocketHandler(connections, verifier)
	services.API = httpapi.NewHandler(coordinator, gamesApp, chatApp, verifier)
	return services, nil
}
