package database

import (
	"context"
	"testing"
	"time"

	"planner/backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestDefaultPoolConfig(t *testing.T) {
	config := DefaultPoolConfig()

	assert.Equal(t, "postgres", config.Driver)
	assert.Equal(t, 25, config.MaxOpenConns)
	assert.Equal(t, 10, config.MaxIdleConns)
	assert.Equal(t, time.Hour, config.ConnMaxLifetime)
	assert.Equal(t, 30*time.Minute, config.ConnMaxIdleTime)
	assert.Equal(t, logger.Warn, config.LogLevel)
}

func TestPoolConfigFrom(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         "/tmp/x.db",
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		LogLevel:     "silent",
	}}

	pc := PoolConfigFrom(cfg)
	assert.Equal(t, "sqlite", pc.Driver)
	assert.Equal(t, "/tmp/x.db", pc.DSN)
	assert.Equal(t, 4, pc.MaxOpenConns)
	assert.Equal(t, logger.Silent, pc.LogLevel)
}

func TestNewDatabasePool_WithNilConfig(t *testing.T) {
	_, err := NewDatabasePool(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN is required")
}

func TestNewDatabasePool_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		config *PoolConfig
	}{
		{"negative open", &PoolConfig{Driver: "sqlite", DSN: ":memory:", MaxOpenConns: -1}},
		{"idle above open", &PoolConfig{Driver: "sqlite", DSN: ":memory:", MaxOpenConns: 2, MaxIdleConns: 5}},
		{"unknown driver", &PoolConfig{Driver: "oracle", DSN: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDatabasePool(tt.config)
			assert.Error(t, err)
		})
	}
}

func TestNewDatabasePool_SQLiteMemory(t *testing.T) {
	pool, err := NewDatabasePool(SQLiteMemoryConfig())
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, pool.Migrate())
	assert.NoError(t, pool.Health(context.Background()))

	for _, table := range []string{"tasks", "events", "task_sync_metadata", "event_sync_metadata",
		"calendar_tasks", "calendar_events", "calendar_syncs", "provider_tokens", "notifications",
		"assistant_interactions", "users"} {
		assert.True(t, pool.DB.Migrator().HasTable(table), table)
	}

	stats := pool.Stats()
	assert.Equal(t, 1, stats["max_open_connections"])
}

func TestDatabasePool_WithoutConnection(t *testing.T) {
	pool := &DatabasePool{}

	stats := pool.Stats()
	assert.Contains(t, stats, "error")
	assert.ErrorIs(t, pool.Health(context.Background()), ErrNoConnection)
	assert.ErrorIs(t, pool.Migrate(), ErrNoConnection)
	assert.NoError(t, pool.Close())
}
