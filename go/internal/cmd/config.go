package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"github.com/mcdev12/fanzone/go/internal/dbconfig"
	"github.com/mcdev12/fanzone/go/internal/gateway"
)

type Config struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	JWTSecret      string   `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer      string   `env:"JWT_ISSUER" envDefault:"fanzone"`
	RedisURL       string   `env:"REDIS_URL"`
	RelayEnabled   bool     `env:"LIVE_RELAY_ENABLED" envDefault:"false"`
	OTLPEndpoint   string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ChatHistory    int      `env:"CHAT_HISTORY_SIZE" envDefault:"50"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	DB    dbconfig.Config
	WS    gateway.ConnectionConfig
	Relay gateway.RelayConfig
}

func loadConfig() (*Config, error) {
	cfg := Config{WS: gateway.DefaultConnectionConfig()}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.WS.Validate(); err != nil {
		return nil, fmt.Errorf("invalid websocket config: %w", err)
	}
	if cfg.WS.CheckOrigin == nil {
		cfg.WS.CheckOrigin = gateway.DefaultConnectionConfig().CheckOrigin
	}
	return &cfg, nil
}

func (c *Config) level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
