package main

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("PORT", "9090")
	t.Setenv("DB_NAME", "fanzone_test")
	t.Setenv("WS_IDLE_TIMEOUT", "45s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://fans.example.com,https://admin.example.com")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Port != "9090" || cfg.DB.Database != "fanzone_test" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.WS.IdleTimeout != 45*time.Second || cfg.WS.SendBufferSize != 256 {
		t.Fatalf("websocket config = %+v", cfg.WS)
	}
	if cfg.WS.CheckOrigin == nil {
		t.Fatalf("CheckOrigin left nil")
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
	if cfg.level() != zerolog.DebugLevel {
		t.Fatalf("level = %v", cfg.level())
	}
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := loadConfig(); err == nil {
		t.Fatalf("expected error without JWT_SECRET")
	}
}

func TestLoadConfigRejectsIdleTimeoutPastReadDeadline(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-test-secret-that-is-long-enough")
	t.Setenv("WS_IDLE_TIMEOUT", "2m")
	if _, err := loadConfig(); err == nil {
		t.Fatalf("expected error when idle timeout outlives the read timeout")
	}
}
