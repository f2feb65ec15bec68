package config

import (
	"testing"
	"time"
)

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":18090")
	t.Setenv("BACKEND_URL", "https://api.example.local")
	t.Setenv("SESSION_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "10.0.0.5:6379")
	t.Setenv("COOKIE_SECRET", "test-secret")
	t.Setenv("COOKIE_TTL", "1h")
	t.Setenv("POLL_INTERVAL_SECONDS", "45")
	t.Setenv("DEFAULT_ROUTE", "/dashboard")
	t.Setenv("LOGIN_BURST", "3")

	cfg := Load()
	if cfg.HTTPAddr != ":18090" {
		t.Fatalf("expected HTTP_ADDR override, got %s", cfg.HTTPAddr)
	}
	if cfg.BackendURL != "https://api.example.local" {
		t.Fatalf("expected BACKEND_URL override, got %s", cfg.BackendURL)
	}
	if cfg.SessionBackend != "redis" {
		t.Fatalf("expected SESSION_BACKEND override, got %s", cfg.SessionBackend)
	}
	if cfg.RedisAddr != "10.0.0.5:6379" {
		t.Fatalf("expected REDIS_ADDR override, got %s", cfg.RedisAddr)
	}
	if cfg.CookieSecret != "test-secret" {
		t.Fatalf("expected COOKIE_SECRET override, got %s", cfg.CookieSecret)
	}
	if cfg.CookieTTL != time.Hour {
		t.Fatalf("expected COOKIE_TTL 1h, got %s", cfg.CookieTTL)
	}
	if cfg.PollInterval != 45*time.Second {
		t.Fatalf("expected POLL_INTERVAL 45s, got %s", cfg.PollInterval)
	}
	if cfg.DefaultRoute != "/dashboard" {
		t.Fatalf("expected DEFAULT_ROUTE override, got %s", cfg.DefaultRoute)
	}
	if cfg.LoginBurst != 3 {
		t.Fatalf("expected LOGIN_BURST 3, got %d", cfg.LoginBurst)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := Load()
	if cfg.SessionBackend != "file" {
		t.Fatalf("expected file backend by default, got %s", cfg.SessionBackend)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Fatalf("expected 30s poll interval, got %s", cfg.PollInterval)
	}
	if cfg.LoginRoute != "/login" {
		t.Fatalf("expected /login, got %s", cfg.LoginRoute)
	}
}
