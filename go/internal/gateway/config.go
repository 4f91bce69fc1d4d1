package gateway

import (
	"fmt"
	"net/http"
	"time"
)

// ConnectionConfig holds configuration for WebSocket connections.
// A healthy client pongs every PingInterval, so IdleTimeout must sit between
// PingInterval and ReadTimeout for the sweeper to close a silent peer before
// its read deadline does.
type ConnectionConfig struct {
	WriteTimeout      time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	ReadTimeout       time.Duration `env:"WS_READ_TIMEOUT" envDefault:"60s"`
	PingInterval      time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	IdleTimeout       time.Duration `env:"WS_IDLE_TIMEOUT" envDefault:"45s"`
	SweepInterval     time.Duration `env:"WS_SWEEP_INTERVAL" envDefault:"15s"`
	MaxMessageSize    int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"4096"`
	SendBufferSize    int           `env:"WS_SEND_BUFFER" envDefault:"256"`
	MaxDecodeFailures int           `env:"WS_MAX_DECODE_FAILURES" envDefault:"5"`
	ReadBufferSize    int           `env:"WS_READ_BUFFER_SIZE" envDefault:"1024"`
	WriteBufferSize   int           `env:"WS_WRITE_BUFFER_SIZE" envDefault:"1024"`

	CheckOrigin func(r *http.Request) bool `env:"-"`
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:      10 * time.Second,
		ReadTimeout:       60 * time.Second,
		PingInterval:      30 * time.Second,
		IdleTimeout:       45 * time.Second,
		SweepInterval:     15 * time.Second,
		MaxMessageSize:    4096,
		SendBufferSize:    256,
		MaxDecodeFailures: 5,
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		CheckOrigin: func(r *http.Request) bool {
			// origins are enforced by the CORS layer in front of the server
			return true
		},
	}
}

// Validate checks the timing relationships between the websocket timeouts
func (c ConnectionConfig) Validate() error {
	if c.PingInterval <= 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("ping interval and sweep interval must be positive")
	}
	if c.IdleTimeout <= c.PingInterval {
		return fmt.Errorf("idle timeout %s must exceed ping interval %s", c.IdleTimeout, c.PingInterval)
	}
	if c.IdleTimeout >= c.ReadTimeout {
		return fmt.Errorf("idle timeout %s must be shorter than read timeout %s", c.IdleTimeout, c.ReadTimeout)
	}
	if c.MaxDecodeFailures <= 0 || c.SendBufferSize <= 0 {
		return fmt.Errorf("decode failure limit and send buffer must be positive")
	}
	return nil
}
