package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected 25 max open conns, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Watchdog.SweepInterval != time.Minute {
		t.Errorf("expected 1m sweep interval, got %v", cfg.Watchdog.SweepInterval)
	}
	if cfg.Watchdog.DueSoonWindow != 2*time.Hour {
		t.Errorf("expected 2h due-soon window, got %v", cfg.Watchdog.DueSoonWindow)
	}
	if cfg.Milestone.WeekStart != time.Sunday {
		t.Errorf("expected Sunday week start, got %v", cfg.Milestone.WeekStart)
	}
	if cfg.Auth.InviteTTL != 48*time.Hour {
		t.Errorf("expected 48h invite TTL, got %v", cfg.Auth.InviteTTL)
	}
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("WATCHDOG_SWEEP_INTERVAL", "30s")
	t.Setenv("MILESTONE_WEEK_START", "Monday")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != "9999" {
		t.Errorf("expected port override, got %s", cfg.Server.Port)
	}
	if cfg.Watchdog.SweepInterval != 30*time.Second {
		t.Errorf("expected 30s sweep interval, got %v", cfg.Watchdog.SweepInterval)
	}
	if cfg.Milestone.WeekStart != time.Monday {
		t.Errorf("expected Monday week start, got %v", cfg.Milestone.WeekStart)
	}
	if cfg.RateLimit.RequestsPerSec != 2.5 {
		t.Errorf("expected 2.5 rps, got %v", cfg.RateLimit.RequestsPerSec)
	}
	if cfg.RateLimit.Enabled {
		t.Error("expected rate limit disabled")
	}
}

func TestLoadConfigInvalidValuesFallBack(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")
	t.Setenv("WATCHDOG_SWEEP_INTERVAL", "soon")
	t.Setenv("MILESTONE_WEEK_START", "Caturday")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected fallback 25, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Watchdog.SweepInterval != time.Minute {
		t.Errorf("expected fallback 1m, got %v", cfg.Watchdog.SweepInterval)
	}
	if cfg.Milestone.WeekStart != time.Sunday {
		t.Errorf("expected fallback Sunday, got %v", cfg.Milestone.WeekStart)
	}
}

func TestProductionRequiresCredentials(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DB_PASSWORD", "")

	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for missing database password in production")
	}

	t.Setenv("DB_PASSWORD", "secret")
	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for default JWT secret in production")
	}

	t.Setenv("JWT_SECRET", "real-secret")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected valid production config, got %v", err)
	}
	if !cfg.IsProduction() {
		t.Error("expected production environment")
	}
}

func TestAddressHelpers(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "duotask_test")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	dsn := cfg.GetDatabaseDSN()
	if dsn != "host=db.internal port=5432 user=postgres password= dbname=duotask_test sslmode=disable" {
		t.Errorf("unexpected DSN: %s", dsn)
	}
	if addr := cfg.GetRedisAddr(); addr != "cache.internal:6380" {
		t.Errorf("unexpected redis addr: %s", addr)
	}
	if addr := cfg.GetServerAddr(); addr != "localhost:8080" {
		t.Errorf("unexpected server addr: %s", addr)
	}
}
