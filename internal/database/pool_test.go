package database

import (
	"testing"
	"time"
)

func TestNewDatabasePoolValidation(t *testing.T) {
	tests := []struct {
		name   string
		config *PoolConfig
	}{
		{
			name:   "missing DSN",
			config: &PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: time.Minute},
		},
		{
			name:   "zero open conns",
			config: &PoolConfig{DSN: "host=localhost", MaxOpenConns: 0, MaxIdleConns: 5, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: time.Minute},
		},
		{
			name:   "negative idle conns",
			config: &PoolConfig{DSN: "host=localhost", MaxOpenConns: 10, MaxIdleConns: -1, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: time.Minute},
		},
		{
			name:   "zero lifetime",
			config: &PoolConfig{DSN: "host=localhost", MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: 0, ConnMaxIdleTime: time.Minute},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := NewDatabasePool(tt.config)
			if err == nil {
				t.Error("expected validation error")
			}
			if pool != nil {
				t.Error("expected nil pool on validation failure")
			}
		})
	}
}

func TestDefaultPoolConfig(t *testing.T) {
	config := DefaultPoolConfig()

	if config.MaxOpenConns != 25 {
		t.Errorf("expected 25 max open conns, got %d", config.MaxOpenConns)
	}
	if config.MaxIdleConns != 10 {
		t.Errorf("expected 10 max idle conns, got %d", config.MaxIdleConns)
	}
	if config.ConnMaxLifetime != time.Hour {
		t.Errorf("expected 1h lifetime, got %v", config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime != 30*time.Minute {
		t.Errorf("expected 30m idle time, got %v", config.ConnMaxIdleTime)
	}
}

func TestDisconnectedPoolBehavior(t *testing.T) {
	pool := &DatabasePool{}

	if err := pool.Health(); err == nil {
		t.Error("expected health error without a connection")
	}
	if err := pool.Migrate(); err == nil {
		t.Error("expected migrate error without a connection")
	}
	if err := pool.Close(); err != nil {
		t.Errorf("close on a disconnected pool should be a no-op, got %v", err)
	}

	stats := pool.Stats()
	if _, ok := stats["error"]; !ok {
		t.Errorf("expected error entry in stats, got %v", stats)
	}
}
