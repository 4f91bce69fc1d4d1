package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/fanzone/go/internal/auth"
	"github.com/mcdev12/fanzone/go/internal/live"
)

// ConnectionManager owns the live WebSocket connections of this process
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	upgrader    websocket.Upgrader
	config      ConnectionConfig
	coordinator *live.Coordinator
	clock       clockwork.Clock
}

// ConnectionStats is the payload of the stats endpoint
type ConnectionStats struct {
	TotalConnections int        `json:"total_connections"`
	ActiveSessions   int        `json:"active_sessions"`
	Subscriptions    live.Stats `json:"subscriptions"`
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, coordinator *live.Coordinator, clock clockwork.Clock) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		coordinator: coordinator,
		clock:       clock,
	}
}

// Start runs the idle sweeper until ctx is done, then closes every
// connection.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Dur("idle_timeout", cm.config.IdleTimeout).Msg("connection manager started")

	ticker := cm.clock.NewTicker(cm.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case <-ticker.Chan():
			cm.sweep()
		}
	}
}

// sweep closes connections that have shown no activity within IdleTimeout
// and returns how many it closed.
func (cm *ConnectionManager) sweep() int {
	cutoff := cm.clock.Now().Add(-cm.config.IdleTimeout)

	cm.mu.RLock()
	var idle []*Connection
	for _, c := range cm.connections {
		if c.idleSince().Before(cutoff) {
			idle = append(idle, c)
		}
	}
	cm.mu.RUnlock()

	for _, c := range idle {
		log.Info().
			Str("connection_id", c.id).
			Str("channel", c.key.String()).
			Time("last_activity", c.idleSince()).
			Msg("closing idle connection")
		c.Close()
	}
	return len(idle)
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for _, c := range cm.connections {
		c.Close()
	}
}

// UpgradeConnection upgrades the request, joins the channel and starts the
// pumps. The caller has already checked that the channel exists.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, key uuid.UUID, capability auth.Capability) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := newConnection(cm, conn, key, capability)
	ctx := context.WithoutCancel(r.Context())

	if err := cm.coordinator.Join(ctx, key, connection); err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "join failed"),
			time.Now().Add(cm.config.WriteTimeout))
		conn.Close()
		return fmt.Errorf("failed to join channel: %w", err)
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump(ctx)

	log.Info().
		Str("connection_id", connection.id).
		Str("user_id", capability.UserID).
		Str("channel", key.String()).
		Msg("WebSocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(c *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[c.id] = c
}

func (cm *ConnectionManager) unregisterConnection(c *Connection) {
	cm.mu.Lock()
	_, ok := cm.connections[c.id]
	delete(cm.connections, c.id)
	cm.mu.Unlock()

	if ok {
		log.Info().
			Str("connection_id", c.id).
			Str("user_id", c.capability.UserID).
			Str("channel", c.key.String()).
			Dur("duration", cm.clock.Since(c.connectedAt)).
			Msg("connection unregistered")
	}
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	total := len(cm.connections)
	cm.mu.RUnlock()

	return ConnectionStats{
		TotalConnections: total,
		ActiveSessions:   cm.coordinator.ActiveSessions(),
		Subscriptions:    cm.coordinator.Stats(),
	}
}
