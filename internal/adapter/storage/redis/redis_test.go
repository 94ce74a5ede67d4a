package redis

import (
	"context"
	"strconv"
	"testing"

	"qr-wallet/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisConfigFor(t *testing.T, s *miniredis.Miniredis) config.RedisConfig {
	t.Helper()
	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)
	return config.RedisConfig{Host: s.Host(), Port: port}
}

func TestNewClient_Connects(t *testing.T) {
	s := miniredis.RunT(t)

	client, err := NewClient(context.Background(), redisConfigFor(t, s), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewClient_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := redisConfigFor(t, s)
	s.Close()

	client, err := NewClient(context.Background(), cfg, zerolog.Nop())
	assert.Nil(t, client)
	assert.ErrorContains(t, err, cfg.Addr())
}

func TestNewClient_WrongPassword(t *testing.T) {
	s := miniredis.RunT(t)
	s.RequireAuth("secret")

	cfg := redisConfigFor(t, s)
	cfg.Password = "wrong"

	_, err := NewClient(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestHealthCheck_WriteCheck(t *testing.T) {
	s, client := newTestClient(t)
	hc := NewHealthCheck(client)

	assert.Equal(t, "redis", hc.Name())
	require.NoError(t, hc.Ping(context.Background()))
	assert.True(t, s.Exists(healthKey))
	assert.Greater(t, s.TTL(healthKey).Seconds(), float64(0))

	s.Close()
	assert.ErrorContains(t, hc.Ping(context.Background()), "write check")
}
