package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/room_chat")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, StorePostgres, cfg.MessageStore)
	assert.Equal(t, 64, cfg.SendQueueSize)
	assert.Equal(t, 10*time.Second, cfg.SendTimeout)
	assert.Equal(t, 4000, cfg.MaxMessageLength)
	assert.False(t, cfg.DebugRoutes)
}

func TestLoadRequiresDSN(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateRejectsUnknownStore(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/room_chat")
	t.Setenv("JWT_SECRET", "secret")
	cfg, err := Load()
	require.NoError(t, err)

	cfg.MessageStore = "redis"
	require.Error(t, cfg.Validate())
}

func TestValidateNeedsSomeAuthSource(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/room_chat")
	t.Setenv("JWT_SECRET", "secret")
	cfg, err := Load()
	require.NoError(t, err)

	cfg.JWTSecret = ""
	require.Error(t, cfg.Validate())

	cfg.AuthGRPCAddr = "localhost:8084"
	require.NoError(t, cfg.Validate())
}
